package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

// MockSink records submissions and can be told to fail.
type MockSink struct {
	mu         sync.Mutex
	Intakes    []models.IntakeSubmission
	Voicemails []models.Voicemail
	Fail       bool
}

func (s *MockSink) SubmitIntake(ctx context.Context, sub models.IntakeSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Intakes = append(s.Intakes, sub)
	if s.Fail {
		return errors.New("crm unavailable")
	}
	return nil
}

func (s *MockSink) SubmitVoicemail(ctx context.Context, vm models.Voicemail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Voicemails = append(s.Voicemails, vm)
	if s.Fail {
		return errors.New("crm unavailable")
	}
	return nil
}

// StaticDirectory serves fixed contractor profiles by called number.
type StaticDirectory map[string]models.ContractorProfile

func (d StaticDirectory) Lookup(ctx context.Context, called string) (models.ContractorProfile, bool) {
	p, ok := d[called]
	return p, ok
}

// NewMockMachine creates a Machine over an in-memory store. The machine and
// the store share one fixed clock.
func NewMockMachine(opts ...MachineOption) (*Machine, *store.InMemoryStore, *MockSink) {
	kv := store.NewInMemoryStore()
	sink := &MockSink{}
	fixed := time.Unix(1_700_000_000, 0)
	kv.SetClock(func() time.Time { return fixed })
	all := append([]MachineOption{WithCompletionSink(sink), WithClock(func() time.Time { return fixed })}, opts...)
	return NewMachine(kv, all...), kv, sink
}
