// Package notify alerts the contractor about new leads by email and SMS.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/IntakeLine/internal/models"
)

// IntakeSubject is the email subject for a new lead.
const IntakeSubject = "New IntakeLine Lead"

// Notifier delivers a lead alert to one recipient.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// IntakeSummary renders the plain-text lead summary.
func IntakeSummary(sub models.IntakeSubmission) string {
	var b strings.Builder
	b.WriteString("New lead captured by phone intake:\n\n")
	if sub.Headline != "" {
		fmt.Fprintf(&b, "Summary: %s\n", sub.Headline)
	}
	fmt.Fprintf(&b, "Client Name: %s\n", sub.Name)
	fmt.Fprintf(&b, "Service Address: %s\n", sub.ServiceAddress)
	fmt.Fprintf(&b, "Job Requested: %s\n", sub.JobDescription)
	fmt.Fprintf(&b, "Timing Needed: %s\n", sub.Timing)
	fmt.Fprintf(&b, "Callback Number: %s\n", sub.Callback)
	fmt.Fprintf(&b, "Call SID: %s\n", sub.CallID)
	return b.String()
}

// IntakeText is the short SMS form of the summary.
func IntakeText(sub models.IntakeSubmission) string {
	job := sub.JobDescription
	if sub.Headline != "" {
		job = sub.Headline
	}
	return fmt.Sprintf("New lead: %s, %s. Call back %s.", sub.Name, job, sub.Callback)
}

// VoicemailText is the SMS and email body for a voicemail.
func VoicemailText(vm models.Voicemail) string {
	return fmt.Sprintf("New voicemail from %s (%ss): %s", vm.From, vm.DurationSeconds, vm.RecordingURL)
}

// MockNotifier records notifications for tests.
type MockNotifier struct {
	Sent []SentNotification
	Err  error
}

// SentNotification is one recorded MockNotifier call.
type SentNotification struct {
	To      string
	Subject string
	Body    string
}

// NewMockNotifier returns an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Sent: []SentNotification{}}
}

func (m *MockNotifier) Notify(ctx context.Context, to, subject, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentNotification{To: to, Subject: subject, Body: body})
	return nil
}
