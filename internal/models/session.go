// Package models defines call-session state management structures for IntakeLine.
package models

import "strings"

// Intake steps. A conversation moves forward through these in order and is
// closed out after StepCallback.
const (
	StepName     = 0
	StepAddress  = 1
	StepJob      = 2
	StepTiming   = 3
	StepCallback = 4
)

// UnknownContractor is the contractor key used when the called number is absent.
const UnknownContractor = "unknown"

// CallSession represents one logical conversation, keyed by its canonical call id.
type CallSession struct {
	CallID        string `json:"call_id"`
	Step          int    `json:"step"`
	Retries       int    `json:"retries"`
	Name          string `json:"name"`
	NameCandidate string `json:"name_candidate,omitempty"`
	NameAttempts  int    `json:"name_attempts,omitempty"`
	NameConfirmed bool   `json:"name_confirmed"`

	AddressIntroPlayed bool   `json:"address_intro_played,omitempty"`
	AddrNumber         string `json:"addr_number,omitempty"`
	AddrStreet         string `json:"addr_street,omitempty"`
	AddrCity           string `json:"addr_city,omitempty"`
	AddrZip            string `json:"addr_zip,omitempty"`
	ServiceAddress     string `json:"service_address"`

	JobCandidate   string `json:"job_candidate,omitempty"`
	JobDescription string `json:"job_description"`
	Timing         string `json:"timing"`
	Callback       string `json:"callback"`

	ToNumber      string `json:"to_number"`
	ContractorKey string `json:"contractor_key"`
	StartedAt     int64  `json:"started_at"`
}

// NewCallSession creates the session for a fresh conversation.
func NewCallSession(callID, toNumber, fromNumber string, startedAt int64) *CallSession {
	contractorKey := toNumber
	if contractorKey == "" {
		contractorKey = UnknownContractor
	}
	return &CallSession{
		CallID:        callID,
		Step:          StepName,
		Callback:      fromNumber,
		ToNumber:      toNumber,
		ContractorKey: contractorKey,
		StartedAt:     startedAt,
	}
}

// InferStep derives the step from which collected fields are present. The
// first empty field in the order name, service address, job description,
// timing wins; a session with all four is at StepCallback.
func (s *CallSession) InferStep() int {
	if s == nil || blank(s.Name) {
		return StepName
	}
	if blank(s.ServiceAddress) {
		return StepAddress
	}
	if blank(s.JobDescription) {
		return StepJob
	}
	if blank(s.Timing) {
		return StepTiming
	}
	return StepCallback
}

// AssembleAddress builds the composite service address from its sub-fields.
// It reports false while any sub-field is still missing.
func (s *CallSession) AssembleAddress() (string, bool) {
	if blank(s.AddrNumber) || blank(s.AddrStreet) || blank(s.AddrCity) || blank(s.AddrZip) {
		return "", false
	}
	return s.AddrNumber + " " + s.AddrStreet + ", " + s.AddrCity + " " + s.AddrZip, true
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
