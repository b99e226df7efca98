package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

// OutboxSink queues one outbox message per applicable channel so the call
// never waits on the CRM or mail server. Messages are deduplicated per
// call and channel.
type OutboxSink struct {
	repo store.OutboxRepo
	d    *Dispatcher
}

// NewOutboxSink queues deliveries for d on repo.
func NewOutboxSink(repo store.OutboxRepo, d *Dispatcher) *OutboxSink {
	return &OutboxSink{repo: repo, d: d}
}

// SubmitIntake enqueues the intake channels.
func (s *OutboxSink) SubmitIntake(ctx context.Context, sub models.IntakeSubmission) error {
	sub = s.d.enrich(ctx, sub)
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal intake: %w", err)
	}
	return s.enqueue(sub.CallID, s.d.intakeKinds(sub), string(payload))
}

// SubmitVoicemail enqueues the voicemail channels.
func (s *OutboxSink) SubmitVoicemail(ctx context.Context, vm models.Voicemail) error {
	payload, err := json.Marshal(vm)
	if err != nil {
		return fmt.Errorf("marshal voicemail: %w", err)
	}
	return s.enqueue(vm.CallID, s.d.voicemailKinds(vm), string(payload))
}

func (s *OutboxSink) enqueue(callID string, kinds []string, payload string) error {
	var errs []error
	for _, kind := range kinds {
		id, err := s.repo.EnqueueOutboxMessage(callID, kind, payload, DedupeKey(kind, callID))
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", kind, err))
			continue
		}
		slog.Debug("OutboxSink.enqueue: queued", "callID", callID, "kind", kind, "messageID", id)
	}
	return errors.Join(errs...)
}

// DedupeKey identifies one channel delivery for one call.
func DedupeKey(kind, callID string) string {
	return kind + ":" + callID
}
