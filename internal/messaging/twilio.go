package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// TwilioSender sends one outbound text. It is satisfied by the real Twilio
// client and by mocks in tests.
type TwilioSender interface {
	SendText(ctx context.Context, to, body string) error
}

// TwilioOpts holds configuration options for the Twilio transport.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	Sender     TwilioSender
}

// TwilioOption configures Twilio service creation.
type TwilioOption func(*TwilioOpts)

func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

func WithFrom(from string) TwilioOption {
	return func(o *TwilioOpts) { o.From = from }
}

// WithSender injects a sender, mainly for tests.
func WithSender(s TwilioSender) TwilioOption {
	return func(o *TwilioOpts) { o.Sender = s }
}

// twilioClient is the production TwilioSender over the Twilio REST API.
type twilioClient struct {
	client *twilio.RestClient
	from   string
}

func (c *twilioClient) SendText(_ context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom(c.from)
	params.SetBody(body)
	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// TwilioService implements Service over SMS/WhatsApp text. Inline choices
// are rendered as a numbered list and the user replies with the number; user
// IDs are phone numbers. Inbound messages arrive through HandleIncoming,
// wired to the provider webhook by the caller.
type TwilioService struct {
	sender  TwilioSender
	events  chan models.Event
	done    chan struct{}
	mu      sync.RWMutex
	stopped bool
	pending map[string][]models.Action
}

// NewTwilioService creates a Twilio-backed service.
func NewTwilioService(opts ...TwilioOption) (*TwilioService, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	sender := cfg.Sender
	if sender == nil {
		if cfg.AccountSID == "" || cfg.AuthToken == "" {
			return nil, fmt.Errorf("twilio account SID and auth token must be provided")
		}
		if cfg.From == "" {
			return nil, fmt.Errorf("twilio from number must be provided")
		}
		sender = &twilioClient{
			client: twilio.NewRestClientWithParams(twilio.ClientParams{
				Username: cfg.AccountSID,
				Password: cfg.AuthToken,
			}),
			from: cfg.From,
		}
	}
	return &TwilioService{
		sender:  sender,
		events:  make(chan models.Event, DefaultChannelBufferSize),
		done:    make(chan struct{}),
		pending: make(map[string][]models.Action),
	}, nil
}

// Start is a no-op: inbound traffic arrives via HandleIncoming.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channel.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	// Let senders parked on the events channel observe done first.
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.events)
	}()

	slog.Debug("Twilio service stopped")
	return nil
}

// Events returns the inbound event channel.
func (s *TwilioService) Events() <-chan models.Event {
	return s.events
}

// Send renders the message as plain text. Choices become a numbered list,
// menus become a caption listing, both answered by replying with text.
func (s *TwilioService) Send(ctx context.Context, userID string, msg models.Message) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	var b strings.Builder
	b.WriteString(msg.Text)
	if len(msg.Choices) > 0 {
		b.WriteString("\n\nОтветьте цифрой:")
		actions := make([]models.Action, len(msg.Choices))
		for i, c := range msg.Choices {
			fmt.Fprintf(&b, "\n%d. %s", i+1, c.Label)
			actions[i] = c.Action
		}
		s.mu.Lock()
		s.pending[userID] = actions
		s.mu.Unlock()
	} else if !msg.Menu.IsZero() {
		b.WriteString("\n\nДоступные команды:")
		for _, row := range msg.Menu.Rows {
			for _, cmd := range row {
				fmt.Fprintf(&b, "\n- %s", CommandCaption(cmd))
			}
		}
	}
	return s.sender.SendText(ctx, userID, b.String())
}

// HandleIncoming decodes one inbound text from the webhook. A bare number
// picks the matching pending choice; a known caption is a command; anything
// else is free text.
func (s *TwilioService) HandleIncoming(from, body string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	body = strings.TrimSpace(body)
	ev := models.Event{UserID: from, Type: models.EventText, Text: body, Time: time.Now().Unix()}

	if n, err := strconv.Atoi(body); err == nil {
		if actions, ok := s.pending[from]; ok && n >= 1 && n <= len(actions) {
			ev = models.Event{UserID: from, Type: models.EventAction, Action: actions[n-1], Time: ev.Time}
			delete(s.pending, from)
		}
	} else if cmd, ok := CaptionCommand(body); ok {
		ev = models.Event{UserID: from, Type: models.EventCommand, Command: cmd, Time: ev.Time}
	}
	s.mu.Unlock()

	select {
	case s.events <- ev:
	case <-s.done:
	}
}
