// Package bitrix implements the Bitrix24 REST webhook client used to turn
// confirmed forms into Bitrix24 tasks.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every webhook request.
const DefaultTimeout = 15 * time.Second

// DefaultUserAgent is sent when no override is configured.
const DefaultUserAgent = "Mozilla/5.0"

// Opts holds configuration options for the Bitrix client.
type Opts struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// Option configures client creation.
type Option func(*Opts)

// WithBaseURL sets the webhook base URL (https://host/rest/<user>/<token>).
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *Opts) { o.UserAgent = ua }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is a minimal Bitrix24 REST webhook client.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewClient creates a Bitrix24 client from the given options. The base URL is
// required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		slog.Error("Bitrix webhook URL not set")
		return nil, fmt.Errorf("bitrix webhook URL not set")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("NewClient created Bitrix client", "userAgent", cfg.UserAgent)
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    cfg.HTTPClient,
	}, nil
}

// methodURL builds <base>/<method>.json.
func (c *Client) methodURL(method string) string {
	return c.baseURL + "/" + method + ".json"
}

// User is a Bitrix24 user profile as returned by user.search.
type User struct {
	ID       string     `json:"ID"`
	Name     string     `json:"NAME"`
	LastName string     `json:"LAST_NAME"`
	Active   activeFlag `json:"ACTIVE"`
}

// activeFlag coerces the ACTIVE field, which Bitrix24 serves as a bool, a
// number or a string depending on the portal version.
type activeFlag bool

func (a *activeFlag) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch strings.ToUpper(strings.Trim(s, `"`)) {
	case "TRUE", "Y", "YES", "1":
		*a = true
	default:
		*a = false
	}
	return nil
}

// SearchUser finds an active Bitrix24 profile by full name. The name must
// carry at least a last name and a first name; a third token is used to
// refine the search when the first pass finds nothing. Returns (nil, nil)
// when no active profile matches.
func (c *Client) SearchUser(ctx context.Context, fullname string) (*User, error) {
	parts := strings.Fields(fullname)
	if len(parts) < 2 {
		slog.Debug("Bitrix user lookup requires at least last name and first name", "fullname", fullname)
		return nil, fmt.Errorf("full name %q must contain at least last name and first name", fullname)
	}

	nameSearch := parts[0] + " " + parts[1]
	params := url.Values{}
	params.Set("FILTER[NAME_SEARCH]", nameSearch)
	user, err := c.searchActive(ctx, params)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	if len(parts) >= 3 {
		params = url.Values{}
		params.Set("FILTER[NAME_SEARCH]", nameSearch)
		params.Set("FILTER[SECOND_NAME]", parts[2])
		user, err = c.searchActive(ctx, params)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	slog.Info("No active Bitrix24 profile found", "fullname", fullname)
	return nil, nil
}

func (c *Client) searchActive(ctx context.Context, params url.Values) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("user.search")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("Bitrix user search request failed", "error", err)
		return nil, fmt.Errorf("bitrix user search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("Bitrix user search returned non-OK status", "status", resp.StatusCode)
		return nil, fmt.Errorf("bitrix user search failed: status %d", resp.StatusCode)
	}

	var payload struct {
		Result []User `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Error("Bitrix user search response decode failed", "error", err)
		return nil, fmt.Errorf("bitrix user search decode failed: %w", err)
	}
	for i := range payload.Result {
		if payload.Result[i].Active {
			slog.Debug("Active Bitrix user found", "id", payload.Result[i].ID)
			return &payload.Result[i], nil
		}
	}
	if len(payload.Result) > 0 {
		slog.Info("Bitrix users found but all inactive")
	}
	return nil, nil
}

// Task describes a Bitrix24 task to create.
type Task struct {
	Title         string
	Description   string
	ResponsibleID int
	CreatedBy     string
	Auditors      []int
}

// CreateTask creates a task via task.item.add. A zero ResponsibleID and nil
// Auditors fall back to the portal administrator.
func (c *Client) CreateTask(ctx context.Context, t Task) error {
	if t.ResponsibleID <= 0 {
		t.ResponsibleID = 1
	}
	if t.Auditors == nil {
		t.Auditors = []int{1}
	}

	body, err := json.Marshal(map[string]any{
		"fields": map[string]any{
			"TITLE":                t.Title,
			"DESCRIPTION":          t.Description,
			"RESPONSIBLE_ID":       t.ResponsibleID,
			"CREATED_BY":           t.CreatedBy,
			"ALLOW_TIME_TRACKING":  "N",
			"AUDITORS":             t.Auditors,
		},
	})
	if err != nil {
		return fmt.Errorf("bitrix task encode failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("task.item.add"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("Bitrix task create request failed", "error", err)
		return fmt.Errorf("bitrix task create failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		slog.Error("Bitrix task create returned non-OK status", "status", resp.StatusCode)
		return fmt.Errorf("bitrix task create failed: status %d", resp.StatusCode)
	}

	var payload struct {
		Result           json.RawMessage `json:"result"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Error("Bitrix task create response decode failed", "error", err)
		return fmt.Errorf("bitrix task create decode failed: %w", err)
	}
	if len(payload.Result) == 0 {
		desc := payload.ErrorDescription
		if desc == "" {
			desc = "unknown error"
		}
		slog.Error("Bitrix task create returned error", "description", desc)
		return fmt.Errorf("bitrix task create failed: %s", desc)
	}
	slog.Info("Bitrix task created successfully", "title", t.Title)
	return nil
}
