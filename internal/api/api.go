// Package api provides the HTTP server for IntakeLine.
//
// It exposes the voice webhooks the telephony platform calls during a call,
// plus a few operational JSON endpoints. Webhook handlers always answer
// with TwiML so the caller never hears a platform error.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/flow"
	"github.com/BTreeMap/IntakeLine/internal/store"
	"github.com/BTreeMap/IntakeLine/internal/voice"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Opts holds configuration for the API server.
type Opts struct {
	Addr            string
	PublicBaseURL   string
	AuthToken       string
	ValidateSigs    bool
	Voice           string
	SMSReply        string
	ShutdownTimeout time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPublicBaseURL sets the externally visible scheme and host. It
// prefixes callback URLs and is the base for signature checks.
func WithPublicBaseURL(u string) Option {
	return func(o *Opts) { o.PublicBaseURL = u }
}

// WithSignatureValidation rejects webhooks not signed with authToken.
func WithSignatureValidation(authToken string) Option {
	return func(o *Opts) {
		o.AuthToken = authToken
		o.ValidateSigs = true
	}
}

// WithVoice sets the text-to-speech voice.
func WithVoice(v string) Option {
	return func(o *Opts) { o.Voice = v }
}

// WithSMSReply overrides DefaultSMSReply.
func WithSMSReply(body string) Option {
	return func(o *Opts) { o.SMSReply = body }
}

// Server serves the webhooks and operational endpoints.
type Server struct {
	machine   *flow.Machine
	kv        store.KV
	renderer  *voice.Renderer
	validator *voice.SignatureValidator
	smsReply  string
	addr      string
	shutdown  time.Duration
}

// NewServer builds a Server over machine. kv is pinged by /health.
func NewServer(machine *flow.Machine, kv store.KV, opts ...Option) (*Server, error) {
	cfg := Opts{Addr: DefaultAddr, SMSReply: DefaultSMSReply, ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if machine == nil {
		return nil, fmt.Errorf("intake machine must be provided")
	}

	var renderOpts []voice.RendererOption
	if cfg.Voice != "" {
		renderOpts = append(renderOpts, voice.WithVoice(cfg.Voice))
	}
	if cfg.PublicBaseURL != "" {
		renderOpts = append(renderOpts, voice.WithBaseURL(cfg.PublicBaseURL))
	}

	s := &Server{
		machine:  machine,
		kv:       kv,
		renderer: voice.NewRenderer(renderOpts...),
		smsReply: cfg.SMSReply,
		addr:     cfg.Addr,
		shutdown: cfg.ShutdownTimeout,
	}
	if cfg.ValidateSigs {
		if cfg.AuthToken == "" || cfg.PublicBaseURL == "" {
			return nil, fmt.Errorf("signature validation needs an auth token and a public base URL")
		}
		s.validator = voice.NewSignatureValidator(cfg.AuthToken, cfg.PublicBaseURL)
	}
	slog.Debug("NewServer: configured", "addr", s.addr, "validateSignatures", s.validator != nil, "publicBaseURL", cfg.PublicBaseURL)
	return s, nil
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/voice", s.webhook(s.voiceHandler))
	mux.Handle(flow.MenuPath, s.webhook(s.voiceMenuHandler))
	mux.Handle(flow.ResumeChoicePath, s.webhook(s.resumeChoiceHandler))
	mux.Handle("/voice-intake", s.webhook(s.voiceIntakeHandler))
	mux.Handle("/voice-emergency", s.webhook(s.voiceEmergencyHandler))
	mux.Handle("/voice-process", s.webhook(s.voiceProcessHandler))
	mux.Handle(flow.VoicemailPath, s.webhook(s.voicemailHandler))
	mux.Handle("/sms", s.webhook(s.smsHandler))

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/calls/live", s.liveCallsHandler)
	mux.HandleFunc("/estimate", s.estimateHandler)

	return withRequestLogging(mux)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
