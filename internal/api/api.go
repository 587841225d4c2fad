// Package api provides the HTTP server that receives inbound Twilio
// WhatsApp webhooks and feeds them into the messaging layer.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// DefaultAddr is the default listen address for the webhook server.
const DefaultAddr = ":8080"

// Inbound consumes decoded webhook messages.
type Inbound interface {
	HandleIncoming(from, body string)
}

// Opts holds configuration options for the webhook server.
type Opts struct {
	Addr string
}

// Option configures the webhook server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server receives Twilio webhooks over HTTP.
type Server struct {
	inbound Inbound
	srv     *http.Server
}

// NewServer creates a webhook server delivering inbound messages to sink.
func NewServer(sink Inbound, opts ...Option) *Server {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}

	s := &Server{inbound: sink}
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/twilio", s.twilioHandler)
	mux.HandleFunc("/health", healthHandler)
	s.srv = &http.Server{Addr: o.Addr, Handler: mux}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Webhook server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Webhook server shutdown failed", "error", err)
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// twilioHandler decodes a Twilio inbound message webhook. Twilio posts
// form-encoded fields; From and Body carry the sender and text.
func (s *Server) twilioHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, errorResponse("bad form data"))
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" {
		writeJSONResponse(w, http.StatusBadRequest, errorResponse("missing From"))
		return
	}

	slog.Debug("Inbound Twilio message", "from", from, "length", len(body))
	s.inbound.HandleIncoming(from, body)
	writeJSONResponse(w, http.StatusOK, okResponse())
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, okResponse())
}
