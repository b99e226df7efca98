// Package crm records leads in the contractor's Airtable base.
package crm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/airtable"
	"github.com/BTreeMap/IntakeLine/internal/models"
)

const (
	// DefaultTable is the lead table.
	DefaultTable = "Leads"
	// DefaultTimeout bounds a single record creation.
	DefaultTimeout = 20 * time.Second

	SourcePhoneCall = "AI Phone Call"
	SourceVoicemail = "Voicemail"
	LeadStatusNew   = "New Lead"
)

// recordCreator is the subset of the Airtable client the CRM needs.
type recordCreator interface {
	CreateRecord(ctx context.Context, table string, fields airtable.Fields) (string, error)
}

// Client writes intakes and voicemails as lead records.
type Client struct {
	api           recordCreator
	table         string
	headlineField string
	timeout       time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHeadlineField writes generated headlines to the named lead column.
// Without it headlines stay out of the record, since the base may not
// have such a column.
func WithHeadlineField(name string) Option {
	return func(c *Client) { c.headlineField = name }
}

// NewClient builds a CRM client writing to table (DefaultTable when empty).
func NewClient(api recordCreator, table string, opts ...Option) *Client {
	if table == "" {
		table = DefaultTable
	}
	c := &Client{api: api, table: table, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordIntake creates a lead for a completed intake and returns the record id.
func (c *Client) RecordIntake(ctx context.Context, sub models.IntakeSubmission) (string, error) {
	fields := IntakeFields(sub)
	if c.headlineField != "" && sub.Headline != "" {
		fields[c.headlineField] = sub.Headline
	}
	id, err := c.create(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("record intake %s: %w", sub.CallID, err)
	}
	slog.Info("CRM.RecordIntake: lead recorded", "callID", sub.CallID, "recordID", id)
	return id, nil
}

// RecordVoicemail creates a lead for a recorded voicemail.
func (c *Client) RecordVoicemail(ctx context.Context, vm models.Voicemail) (string, error) {
	id, err := c.create(ctx, VoicemailFields(vm))
	if err != nil {
		return "", fmt.Errorf("record voicemail %s: %w", vm.CallID, err)
	}
	slog.Info("CRM.RecordVoicemail: voicemail recorded", "callID", vm.CallID, "recordID", id)
	return id, nil
}

func (c *Client) create(ctx context.Context, fields airtable.Fields) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.CreateRecord(cctx, c.table, fields)
}

// IntakeFields maps a submission onto the lead table columns.
func IntakeFields(sub models.IntakeSubmission) airtable.Fields {
	return airtable.Fields{
		"Client Name":           sub.Name,
		"Call Back Number":      sub.Callback,
		"Service Address":       sub.ServiceAddress,
		"Job Description":       sub.JobDescription,
		"Source":                SourcePhoneCall,
		"Call SID":              sub.CallID,
		"Appointment Requested": sub.Timing,
		"Lead Status":           LeadStatusNew,
	}
}

// VoicemailFields maps a voicemail onto the lead table columns.
func VoicemailFields(vm models.Voicemail) airtable.Fields {
	return airtable.Fields{
		"Source":           SourceVoicemail,
		"Call SID":         vm.CallID,
		"Call Back Number": vm.From,
		"Job Description":  fmt.Sprintf("VOICEMAIL: %s (%ss)", vm.RecordingURL, vm.DurationSeconds),
		"Lead Status":      LeadStatusNew,
	}
}
