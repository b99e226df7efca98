package models

import "time"

// Turn is one inbound webhook request: the caller's latest input plus the
// step context needed to interpret it.
type Turn struct {
	CallID string `json:"call_id"`
	Called string `json:"called_number"`
	Caller string `json:"caller_number"`
	Step   int    `json:"step"`
	Field  string `json:"field,omitempty"`
	Digits string `json:"digits,omitempty"`
	Speech string `json:"speech_text,omitempty"`
	// Retry is the silent-turn count echoed back in the callback URL.
	Retry  int    `json:"retry,omitempty"`
}

// HasInput reports whether the turn carries any speech or keypad input.
func (t Turn) HasInput() bool {
	return t.Digits != "" || t.Speech != ""
}

// ContractorProfile holds the business attributes looked up by called number.
type ContractorProfile struct {
	BusinessName   string `json:"business_name"`
	EmergencyPhone string `json:"emergency_phone,omitempty"`
	NotifyEmail    string `json:"notify_email,omitempty"`
	NotifyPhone    string `json:"notify_phone,omitempty"`
	Active         bool   `json:"active"`
}

// DefaultBusinessName is spoken when no contractor profile is found.
const DefaultBusinessName = "our office"

// DisplayName returns the business name or the spoken default.
func (c ContractorProfile) DisplayName() string {
	if c.BusinessName == "" {
		return DefaultBusinessName
	}
	return c.BusinessName
}

// IntakeSubmission is the snapshot handed to the completion sink once every
// field has been collected.
type IntakeSubmission struct {
	CallID         string    `json:"call_id"`
	ContractorKey  string    `json:"contractor_key"`
	BusinessName   string    `json:"business_name,omitempty"`
	Name           string    `json:"name"`
	NameConfirmed  bool      `json:"name_confirmed"`
	ServiceAddress string    `json:"service_address"`
	JobDescription string    `json:"job_description"`
	Timing         string    `json:"timing"`
	Callback       string    `json:"callback"`
	StartedAt      int64     `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	Headline       string    `json:"headline,omitempty"`
	NotifyEmail    string    `json:"notify_email,omitempty"`
	NotifyPhone    string    `json:"notify_phone,omitempty"`
}

// Submission snapshots the session for the completion sink.
func (s *CallSession) Submission(completedAt time.Time) IntakeSubmission {
	return IntakeSubmission{
		CallID:         s.CallID,
		ContractorKey:  s.ContractorKey,
		Name:           s.Name,
		NameConfirmed:  s.NameConfirmed,
		ServiceAddress: s.ServiceAddress,
		JobDescription: s.JobDescription,
		Timing:         s.Timing,
		Callback:       s.Callback,
		StartedAt:      s.StartedAt,
		CompletedAt:    completedAt,
	}
}

// Voicemail is a recorded message left when no live transfer was possible.
type Voicemail struct {
	CallID          string `json:"call_id"`
	Called          string `json:"called_number,omitempty"`
	From            string `json:"from"`
	RecordingURL    string `json:"recording_url"`
	DurationSeconds string `json:"duration_seconds"`
	NotifyEmail     string `json:"notify_email,omitempty"`
	NotifyPhone     string `json:"notify_phone,omitempty"`
}
