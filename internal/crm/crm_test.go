package crm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/IntakeLine/internal/airtable"
	"github.com/BTreeMap/IntakeLine/internal/models"
)

type fakeCreator struct {
	table  string
	fields airtable.Fields
	err    error
}

func (f *fakeCreator) CreateRecord(ctx context.Context, table string, fields airtable.Fields) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("expected a deadline")
	}
	f.table = table
	f.fields = fields
	return "rec42", f.err
}

func TestRecordIntake(t *testing.T) {
	api := &fakeCreator{}
	c := NewClient(api, "")
	sub := models.IntakeSubmission{
		CallID:         "CA1",
		Name:           "Dana Smith",
		ServiceAddress: "45 Oak Street, Bowie 20715",
		JobDescription: "leaking water heater",
		Timing:         "tomorrow morning",
		Callback:       "3015550123",
	}

	id, err := c.RecordIntake(context.Background(), sub)
	if err != nil {
		t.Fatalf("RecordIntake: %v", err)
	}
	if id != "rec42" || api.table != DefaultTable {
		t.Errorf("unexpected id %q table %q", id, api.table)
	}
	want := map[string]string{
		"Client Name":           "Dana Smith",
		"Call Back Number":      "3015550123",
		"Service Address":       "45 Oak Street, Bowie 20715",
		"Job Description":       "leaking water heater",
		"Source":                "AI Phone Call",
		"Call SID":              "CA1",
		"Appointment Requested": "tomorrow morning",
		"Lead Status":           "New Lead",
	}
	for k, v := range want {
		if api.fields[k] != v {
			t.Errorf("field %q = %v, want %q", k, api.fields[k], v)
		}
	}
	if len(api.fields) != len(want) {
		t.Errorf("got %d fields, want exactly the %d lead columns: %v", len(api.fields), len(want), api.fields)
	}
}

func TestRecordIntakeHeadlineColumn(t *testing.T) {
	sub := models.IntakeSubmission{CallID: "CA1", Name: "Dana Smith", Headline: "Water heater leak in Bowie"}

	api := &fakeCreator{}
	if _, err := NewClient(api, "").RecordIntake(context.Background(), sub); err != nil {
		t.Fatalf("RecordIntake: %v", err)
	}
	if _, ok := api.fields["Headline"]; ok {
		t.Error("headline written without a configured column")
	}
	if len(api.fields) != len(IntakeFields(models.IntakeSubmission{})) {
		t.Errorf("unexpected extra fields: %v", api.fields)
	}

	api = &fakeCreator{}
	if _, err := NewClient(api, "", WithHeadlineField("AI Summary")).RecordIntake(context.Background(), sub); err != nil {
		t.Fatalf("RecordIntake: %v", err)
	}
	if api.fields["AI Summary"] != sub.Headline {
		t.Errorf("AI Summary = %v, want %q", api.fields["AI Summary"], sub.Headline)
	}
}

func TestRecordIntakeError(t *testing.T) {
	c := NewClient(&fakeCreator{err: errors.New("status 422")}, "Leads")
	_, err := c.RecordIntake(context.Background(), models.IntakeSubmission{CallID: "CA9"})
	if err == nil || !strings.Contains(err.Error(), "CA9") {
		t.Fatalf("expected wrapped error naming the call, got %v", err)
	}
}

func TestRecordVoicemail(t *testing.T) {
	api := &fakeCreator{}
	c := NewClient(api, "Leads")
	vm := models.Voicemail{CallID: "CA2", From: "+13015550123", RecordingURL: "https://rec.test/RE1", DurationSeconds: "34"}

	if _, err := c.RecordVoicemail(context.Background(), vm); err != nil {
		t.Fatalf("RecordVoicemail: %v", err)
	}
	if api.fields["Source"] != "Voicemail" {
		t.Errorf("unexpected source %v", api.fields["Source"])
	}
	if api.fields["Job Description"] != "VOICEMAIL: https://rec.test/RE1 (34s)" {
		t.Errorf("unexpected description %v", api.fields["Job Description"])
	}
}
