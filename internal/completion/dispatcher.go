// Package completion delivers finished intakes and voicemails to the
// contractor: a CRM record plus email and SMS alerts.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/notify"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

// Delivery kinds. Each is one independently retried outbox message.
const (
	KindIntakeCRM      = "intake.crm"
	KindIntakeEmail    = "intake.email"
	KindIntakeSMS      = "intake.sms"
	KindVoicemailCRM   = "voicemail.crm"
	KindVoicemailEmail = "voicemail.email"
	KindVoicemailSMS   = "voicemail.sms"
)

// VoicemailSubject is the email subject for a voicemail alert.
const VoicemailSubject = "New IntakeLine Voicemail"

// ErrUnknownKind is returned by Deliver for kinds it does not handle.
var ErrUnknownKind = errors.New("unknown delivery kind")

// LeadRecorder writes leads to the CRM.
type LeadRecorder interface {
	RecordIntake(ctx context.Context, sub models.IntakeSubmission) (string, error)
	RecordVoicemail(ctx context.Context, vm models.Voicemail) (string, error)
}

// Headliner produces an optional one-line lead summary.
type Headliner interface {
	Headline(ctx context.Context, sub models.IntakeSubmission) string
}

// Dispatcher performs deliveries. Used directly it is a flow.CompletionSink
// that runs every channel inline; behind an OutboxSink it is the send
// function of the outbox sender.
type Dispatcher struct {
	crm       LeadRecorder
	email     notify.Notifier
	sms       notify.Notifier
	headliner Headliner
	emailTo   string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCRM enables lead records.
func WithCRM(crm LeadRecorder) Option {
	return func(d *Dispatcher) { d.crm = crm }
}

// WithEmail enables email alerts. fallbackTo receives alerts for
// contractors without a notify email.
func WithEmail(n notify.Notifier, fallbackTo string) Option {
	return func(d *Dispatcher) {
		d.email = n
		d.emailTo = fallbackTo
	}
}

// WithSMS enables SMS alerts to the contractor's notify phone.
func WithSMS(n notify.Notifier) Option {
	return func(d *Dispatcher) { d.sms = n }
}

// WithHeadliner enables generated lead headlines.
func WithHeadliner(h Headliner) Option {
	return func(d *Dispatcher) { d.headliner = h }
}

// NewDispatcher builds a Dispatcher; channels left unconfigured are skipped.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	slog.Debug("NewDispatcher: channels", "crm", d.crm != nil, "email", d.email != nil, "sms", d.sms != nil, "headline", d.headliner != nil)
	return d
}

// enrich fills the headline when a headliner is configured.
func (d *Dispatcher) enrich(ctx context.Context, sub models.IntakeSubmission) models.IntakeSubmission {
	if d.headliner != nil && sub.Headline == "" {
		sub.Headline = d.headliner.Headline(ctx, sub)
	}
	return sub
}

func (d *Dispatcher) emailRecipient(notifyEmail string) string {
	if notifyEmail != "" {
		return notifyEmail
	}
	return d.emailTo
}

// intakeKinds lists the channels that apply to sub.
func (d *Dispatcher) intakeKinds(sub models.IntakeSubmission) []string {
	var kinds []string
	if d.crm != nil {
		kinds = append(kinds, KindIntakeCRM)
	}
	if d.email != nil && d.emailRecipient(sub.NotifyEmail) != "" {
		kinds = append(kinds, KindIntakeEmail)
	}
	if d.sms != nil && sub.NotifyPhone != "" {
		kinds = append(kinds, KindIntakeSMS)
	}
	return kinds
}

func (d *Dispatcher) voicemailKinds(vm models.Voicemail) []string {
	var kinds []string
	if d.crm != nil {
		kinds = append(kinds, KindVoicemailCRM)
	}
	if d.email != nil && d.emailRecipient(vm.NotifyEmail) != "" {
		kinds = append(kinds, KindVoicemailEmail)
	}
	if d.sms != nil && vm.NotifyPhone != "" {
		kinds = append(kinds, KindVoicemailSMS)
	}
	return kinds
}

// SubmitIntake delivers every applicable channel and joins their errors.
func (d *Dispatcher) SubmitIntake(ctx context.Context, sub models.IntakeSubmission) error {
	sub = d.enrich(ctx, sub)
	var errs []error
	for _, kind := range d.intakeKinds(sub) {
		if err := d.deliverIntake(ctx, kind, sub); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// SubmitVoicemail delivers every applicable voicemail channel.
func (d *Dispatcher) SubmitVoicemail(ctx context.Context, vm models.Voicemail) error {
	var errs []error
	for _, kind := range d.voicemailKinds(vm) {
		if err := d.deliverVoicemail(ctx, kind, vm); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliverIntake(ctx context.Context, kind string, sub models.IntakeSubmission) error {
	switch kind {
	case KindIntakeCRM:
		_, err := d.crm.RecordIntake(ctx, sub)
		return err
	case KindIntakeEmail:
		return d.email.Notify(ctx, d.emailRecipient(sub.NotifyEmail), notify.IntakeSubject, notify.IntakeSummary(sub))
	case KindIntakeSMS:
		return d.sms.Notify(ctx, sub.NotifyPhone, "", notify.IntakeText(sub))
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

func (d *Dispatcher) deliverVoicemail(ctx context.Context, kind string, vm models.Voicemail) error {
	switch kind {
	case KindVoicemailCRM:
		_, err := d.crm.RecordVoicemail(ctx, vm)
		return err
	case KindVoicemailEmail:
		return d.email.Notify(ctx, d.emailRecipient(vm.NotifyEmail), VoicemailSubject, notify.VoicemailText(vm))
	case KindVoicemailSMS:
		return d.sms.Notify(ctx, vm.NotifyPhone, "", notify.VoicemailText(vm))
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

// Deliver sends one outbox message. It matches store.OutboxSendFunc.
func (d *Dispatcher) Deliver(ctx context.Context, msg store.OutboxMessage) error {
	switch msg.Kind {
	case KindIntakeCRM, KindIntakeEmail, KindIntakeSMS:
		var sub models.IntakeSubmission
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &sub); err != nil {
			return fmt.Errorf("decode intake payload: %w", err)
		}
		return d.deliverIntake(ctx, msg.Kind, sub)
	case KindVoicemailCRM, KindVoicemailEmail, KindVoicemailSMS:
		var vm models.Voicemail
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &vm); err != nil {
			return fmt.Errorf("decode voicemail payload: %w", err)
		}
		return d.deliverVoicemail(ctx, msg.Kind, vm)
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, msg.Kind)
}
