package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

// MaxSilentRetries is how many consecutive no-input turns are re-prompted
// before the call is ended.
const MaxSilentRetries = 2

// DefaultSubmitTimeout bounds the completion sink so close-out finishes
// inside the platform's webhook deadline.
const DefaultSubmitTimeout = 8 * time.Second

// Directory looks up contractor attributes by called number.
type Directory interface {
	Lookup(ctx context.Context, called string) (models.ContractorProfile, bool)
}

// CompletionSink receives finished intakes and recorded voicemails.
type CompletionSink interface {
	SubmitIntake(ctx context.Context, sub models.IntakeSubmission) error
	SubmitVoicemail(ctx context.Context, vm models.Voicemail) error
}

// Machine runs the intake conversation. It holds no call state of its own;
// every turn reads and writes the KV store.
type Machine struct {
	sessions *SessionStore
	resume   *ResumeRegistry
	aliases  *AliasRegistry
	live     *LiveCallRegistry

	directory     Directory
	sink          CompletionSink
	submitTimeout time.Duration
	now           func() time.Time
}

// MachineOption configures a Machine.
type MachineOption func(*machineConfig)

type machineConfig struct {
	keys          Keyspace
	sessionTTL    time.Duration
	directory     Directory
	sink          CompletionSink
	submitTimeout time.Duration
	now           func() time.Time
}

// WithKeyspace overrides the store key layout.
func WithKeyspace(keys Keyspace) MachineOption {
	return func(c *machineConfig) { c.keys = keys }
}

// WithSessionTTL sets the session idle TTL (also used for live-call sets).
func WithSessionTTL(ttl time.Duration) MachineOption {
	return func(c *machineConfig) { c.sessionTTL = ttl }
}

// WithDirectory sets the contractor directory.
func WithDirectory(d Directory) MachineOption {
	return func(c *machineConfig) { c.directory = d }
}

// WithCompletionSink sets where finished intakes are delivered.
func WithCompletionSink(s CompletionSink) MachineOption {
	return func(c *machineConfig) { c.sink = s }
}

// WithSubmitTimeout bounds a single completion submission.
func WithSubmitTimeout(d time.Duration) MachineOption {
	return func(c *machineConfig) { c.submitTimeout = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) MachineOption {
	return func(c *machineConfig) { c.now = now }
}

// NewMachine builds a Machine on kv. Callers that want store outages to
// degrade into fresh conversations should pass a store.DegradedKV.
func NewMachine(kv store.KV, opts ...MachineOption) *Machine {
	cfg := machineConfig{
		keys:          DefaultKeyspace(),
		sessionTTL:    DefaultSessionTTL,
		submitTimeout: DefaultSubmitTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewMachine: creating intake machine", "sessionTTL", cfg.sessionTTL, "directory", cfg.directory != nil, "sink", cfg.sink != nil)

	return &Machine{
		sessions:      NewSessionStore(kv, cfg.keys, cfg.sessionTTL),
		resume:        NewResumeRegistry(kv, cfg.keys),
		aliases:       NewAliasRegistry(kv, cfg.keys),
		live:          NewLiveCallRegistry(kv, cfg.keys, cfg.sessionTTL),
		directory:     cfg.directory,
		sink:          cfg.sink,
		submitTimeout: cfg.submitTimeout,
		now:           cfg.now,
	}
}

// Sessions exposes the session store, mainly for operational endpoints and tests.
func (m *Machine) Sessions() *SessionStore { return m.sessions }

func (m *Machine) lookup(ctx context.Context, called string) models.ContractorProfile {
	if m.directory == nil || called == "" {
		return models.ContractorProfile{}
	}
	profile, _ := m.directory.Lookup(ctx, called)
	return profile
}

// Greeting welcomes the caller by business name and offers the
// emergency/estimate menu. Silence falls through to the estimate branch.
func (m *Machine) Greeting(ctx context.Context, called string) models.Instruction {
	profile := m.lookup(ctx, called)
	slog.Debug("Machine.Greeting", "called", called, "business", profile.DisplayName())

	in := models.NewPrompt(models.Prompt{
		Text:      textGreetingMenu,
		Input:     models.InputDTMF,
		NumDigits: 1,
		Timeout:   6,
		Action:    MenuPath,
	}).Say("Thank you for calling " + profile.DisplayName() + ".")
	in.Pause = 2
	return in
}

// Menu routes the greeting choice: 1 is an emergency, anything else
// (including silence) is the estimate branch with the resume check.
func (m *Machine) Menu(ctx context.Context, turn models.Turn) models.Instruction {
	if turn.Digits == "1" {
		slog.Info("Machine.Menu: emergency selected", "callID", turn.CallID)
		return m.Emergency(ctx, turn.Called)
	}
	return m.OfferResume(ctx, turn)
}

// Emergency transfers the caller to the contractor's emergency phone, or
// records a voicemail when there is none.
func (m *Machine) Emergency(ctx context.Context, called string) models.Instruction {
	profile := m.lookup(ctx, called)
	if profile.EmergencyPhone != "" {
		slog.Info("Machine.Emergency: transferring", "called", called, "to", profile.EmergencyPhone)
		return models.NewTransfer(profile.EmergencyPhone, called).Say(textConnecting)
	}
	slog.Info("Machine.Emergency: no emergency phone, recording voicemail", "called", called)
	return models.NewVoicemail(VoicemailPath).Say(textVoicemailPrompt)
}

// Voicemail hands a recorded message to the completion sink and thanks the caller.
func (m *Machine) Voicemail(ctx context.Context, vm models.Voicemail) models.Instruction {
	slog.Info("Machine.Voicemail: recording received", "callID", vm.CallID, "duration", vm.DurationSeconds)
	if m.sink != nil {
		sctx, cancel := context.WithTimeout(ctx, m.submitTimeout)
		defer cancel()
		profile := m.lookup(sctx, vm.Called)
		vm.NotifyEmail = profile.NotifyEmail
		vm.NotifyPhone = profile.NotifyPhone
		if err := m.sink.SubmitVoicemail(sctx, vm); err != nil {
			slog.Error("Machine.Voicemail: submit failed", "callID", vm.CallID, "error", err)
		}
	}
	return models.NewTerminal(textVoicemailThanks)
}

// LiveCalls lists the call ids currently registered for a contractor.
func (m *Machine) LiveCalls(ctx context.Context, contractorKey string) []string {
	if contractorKey == "" {
		contractorKey = models.UnknownContractor
	}
	return m.live.List(ctx, contractorKey)
}
