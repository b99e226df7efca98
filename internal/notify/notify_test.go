package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/IntakeLine/internal/models"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func sampleSubmission() models.IntakeSubmission {
	return models.IntakeSubmission{
		CallID:         "CA1",
		Name:           "Dana Smith",
		ServiceAddress: "45 Oak Street, Bowie 20715",
		JobDescription: "leaking water heater",
		Timing:         "tomorrow morning",
		Callback:       "3015550123",
	}
}

func TestIntakeSummary(t *testing.T) {
	body := IntakeSummary(sampleSubmission())
	for _, want := range []string{
		"Client Name: Dana Smith",
		"Service Address: 45 Oak Street, Bowie 20715",
		"Job Requested: leaking water heater",
		"Timing Needed: tomorrow morning",
		"Callback Number: 3015550123",
		"Call SID: CA1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("summary missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Summary:") {
		t.Error("summary line should be omitted without a headline")
	}
}

func TestIntakeTextPrefersHeadline(t *testing.T) {
	sub := sampleSubmission()
	if got := IntakeText(sub); !strings.Contains(got, "leaking water heater") {
		t.Errorf("unexpected text %q", got)
	}
	sub.Headline = "Water heater leak in Bowie"
	if got := IntakeText(sub); !strings.Contains(got, sub.Headline) {
		t.Errorf("expected headline in text, got %q", got)
	}
}

func TestVoicemailText(t *testing.T) {
	got := VoicemailText(models.Voicemail{From: "+13015550123", DurationSeconds: "12", RecordingURL: "https://rec.test/RE1"})
	if got != "New voicemail from +13015550123 (12s): https://rec.test/RE1" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestMockNotifier(t *testing.T) {
	mock := NewMockNotifier()
	if err := mock.Notify(context.Background(), "+15550001111", "s", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Sent) != 1 || mock.Sent[0].Body != "Hello Test" {
		t.Fatalf("unexpected sent list %+v", mock.Sent)
	}
	mock.Err = errors.New("boom")
	if err := mock.Notify(context.Background(), "x", "s", "b"); err == nil {
		t.Fatal("expected configured error")
	}
}

type fakeMessages struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	return &twilioApi.ApiV2010Message{}, f.err
}

func TestSMSNotifier_Notify(t *testing.T) {
	api := &fakeMessages{}
	s := &SMSNotifier{api: api, from: "+15550000000"}

	if err := s.Notify(context.Background(), "+15550001111", "ignored", "New lead"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if *api.params.To != "+15550001111" || *api.params.From != "+15550000000" || *api.params.Body != "New lead" {
		t.Errorf("unexpected params to=%s from=%s body=%s", *api.params.To, *api.params.From, *api.params.Body)
	}

	api.err = errors.New("21211 invalid number")
	if err := s.Notify(context.Background(), "bad", "", "x"); err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSMSNotifier_MissingConfig(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewSMSNotifier(); err == nil {
		t.Fatal("expected error without credentials")
	}
	if _, err := NewSMSNotifier(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Fatal("expected error without from number")
	}
	s, err := NewSMSNotifier(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromNumber("+15550000000"))
	if err != nil || s.from != "+15550000000" {
		t.Fatalf("unexpected notifier %+v err=%v", s, err)
	}
}

func TestEmailNotifier_Message(t *testing.T) {
	e := NewEmailNotifier("smtp.example.test", 0, "", "", "bot@example.test")
	if e.port != DefaultSMTPPort {
		t.Errorf("expected default port, got %d", e.port)
	}
	msg, err := e.message("owner@acme.test", IntakeSubject, "body")
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if to := msg.GetToString(); len(to) != 1 || !strings.Contains(to[0], "owner@acme.test") {
		t.Errorf("unexpected recipients %v", to)
	}

	if _, err := e.message("not an address", IntakeSubject, "body"); err == nil {
		t.Error("expected invalid recipient error")
	}
}
