package completion

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/notify"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

type mockCRM struct {
	intakes    []models.IntakeSubmission
	voicemails []models.Voicemail
	failures   int
}

func (m *mockCRM) RecordIntake(ctx context.Context, sub models.IntakeSubmission) (string, error) {
	if m.failures > 0 {
		m.failures--
		return "", errors.New("status 503")
	}
	m.intakes = append(m.intakes, sub)
	return "rec1", nil
}

func (m *mockCRM) RecordVoicemail(ctx context.Context, vm models.Voicemail) (string, error) {
	m.voicemails = append(m.voicemails, vm)
	return "rec2", nil
}

type staticHeadliner string

func (h staticHeadliner) Headline(ctx context.Context, sub models.IntakeSubmission) string {
	return string(h)
}

func sampleSubmission() models.IntakeSubmission {
	return models.IntakeSubmission{
		CallID:         "CA1",
		Name:           "Dana Smith",
		ServiceAddress: "45 Oak Street, Bowie 20715",
		JobDescription: "leaking water heater",
		Timing:         "tomorrow",
		Callback:       "3015550123",
		NotifyPhone:    "+13015559999",
	}
}

func TestDispatcherSubmitIntake(t *testing.T) {
	crm := &mockCRM{}
	email := notify.NewMockNotifier()
	sms := notify.NewMockNotifier()
	d := NewDispatcher(WithCRM(crm), WithEmail(email, "office@acme.test"), WithSMS(sms), WithHeadliner(staticHeadliner("Water heater leak")))

	if err := d.SubmitIntake(context.Background(), sampleSubmission()); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if len(crm.intakes) != 1 || crm.intakes[0].Headline != "Water heater leak" {
		t.Fatalf("crm not called with headline: %+v", crm.intakes)
	}
	if len(email.Sent) != 1 || email.Sent[0].To != "office@acme.test" || email.Sent[0].Subject != notify.IntakeSubject {
		t.Errorf("unexpected email %+v", email.Sent)
	}
	if len(sms.Sent) != 1 || sms.Sent[0].To != "+13015559999" {
		t.Errorf("unexpected sms %+v", sms.Sent)
	}
}

func TestDispatcherPrefersContractorEmail(t *testing.T) {
	email := notify.NewMockNotifier()
	d := NewDispatcher(WithEmail(email, "office@acme.test"))
	sub := sampleSubmission()
	sub.NotifyEmail = "owner@acme.test"

	if err := d.SubmitIntake(context.Background(), sub); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if email.Sent[0].To != "owner@acme.test" {
		t.Errorf("expected contractor email, got %q", email.Sent[0].To)
	}
}

func TestDispatcherSkipsUnconfiguredChannels(t *testing.T) {
	d := NewDispatcher(WithEmail(notify.NewMockNotifier(), ""), WithSMS(notify.NewMockNotifier()))
	sub := sampleSubmission()
	sub.NotifyPhone = ""
	if kinds := d.intakeKinds(sub); len(kinds) != 0 {
		t.Errorf("expected no channels, got %v", kinds)
	}
}

func TestDispatcherJoinsErrors(t *testing.T) {
	crm := &mockCRM{failures: 1}
	email := notify.NewMockNotifier()
	d := NewDispatcher(WithCRM(crm), WithEmail(email, "office@acme.test"))

	err := d.SubmitIntake(context.Background(), sampleSubmission())
	if err == nil || !strings.Contains(err.Error(), KindIntakeCRM) {
		t.Fatalf("expected crm failure, got %v", err)
	}
	if len(email.Sent) != 1 {
		t.Error("email should still be sent when the crm fails")
	}
}

func TestDispatcherSubmitVoicemail(t *testing.T) {
	crm := &mockCRM{}
	email := notify.NewMockNotifier()
	d := NewDispatcher(WithCRM(crm), WithEmail(email, "office@acme.test"))
	vm := models.Voicemail{CallID: "CA7", From: "+13015550123", RecordingURL: "https://rec.test/RE1", DurationSeconds: "20"}

	if err := d.SubmitVoicemail(context.Background(), vm); err != nil {
		t.Fatalf("SubmitVoicemail: %v", err)
	}
	if len(crm.voicemails) != 1 || len(email.Sent) != 1 || email.Sent[0].Subject != VoicemailSubject {
		t.Errorf("unexpected deliveries crm=%v email=%v", crm.voicemails, email.Sent)
	}
}

func TestDeliverUnknownKind(t *testing.T) {
	d := NewDispatcher()
	err := d.Deliver(context.Background(), store.OutboxMessage{Kind: "fax"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	err = d.Deliver(context.Background(), store.OutboxMessage{Kind: KindIntakeCRM, PayloadJSON: "{"})
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func newTestOutbox(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(store.WithSQLiteDSN(filepath.Join(t.TempDir(), "outbox.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOutboxSinkDeliversThroughSender(t *testing.T) {
	repo := newTestOutbox(t)
	crm := &mockCRM{failures: 1}
	email := notify.NewMockNotifier()
	d := NewDispatcher(WithCRM(crm), WithEmail(email, "office@acme.test"))
	sink := NewOutboxSink(repo, d)
	ctx := context.Background()

	if err := sink.SubmitIntake(ctx, sampleSubmission()); err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	// A redelivered completion does not queue a second copy.
	if err := sink.SubmitIntake(ctx, sampleSubmission()); err != nil {
		t.Fatalf("SubmitIntake again: %v", err)
	}

	sender := store.NewOutboxSender(repo, d.Deliver, 0)
	if n := sender.Poll(ctx); n != 1 {
		t.Fatalf("expected 1 delivered message, got %d", n)
	}
	if len(email.Sent) != 1 {
		t.Errorf("expected one email, got %d", len(email.Sent))
	}
	if len(crm.intakes) != 0 {
		t.Fatalf("crm should have failed on the first attempt")
	}

	// Only the failed channel is retried.
	retry, err := repo.ClaimDueOutboxMessages(time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("claim retry: %v", err)
	}
	if len(retry) != 1 || retry[0].Kind != KindIntakeCRM || retry[0].Attempts != 1 {
		t.Fatalf("expected one crm retry, got %+v", retry)
	}
	if err := d.Deliver(ctx, retry[0]); err != nil {
		t.Fatalf("retry delivery: %v", err)
	}
	if len(crm.intakes) != 1 || crm.intakes[0].CallID != "CA1" {
		t.Errorf("crm retry not delivered: %+v", crm.intakes)
	}
}

func TestOutboxSinkVoicemail(t *testing.T) {
	repo := newTestOutbox(t)
	d := NewDispatcher(WithCRM(&mockCRM{}))
	sink := NewOutboxSink(repo, d)

	vm := models.Voicemail{CallID: "CA8", From: "+13015550123", RecordingURL: "https://rec.test/RE2", DurationSeconds: "9"}
	if err := sink.SubmitVoicemail(context.Background(), vm); err != nil {
		t.Fatalf("SubmitVoicemail: %v", err)
	}
	msgs, err := repo.ClaimDueOutboxMessages(time.Now(), 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Kind != KindVoicemailCRM || msgs[0].DedupeKey != "voicemail.crm:CA8" {
		t.Fatalf("unexpected queued messages %+v", msgs)
	}
}

func TestDedupeKey(t *testing.T) {
	if got := DedupeKey(KindIntakeEmail, "CA1"); got != "intake.email:CA1" {
		t.Errorf("unexpected key %q", got)
	}
}
