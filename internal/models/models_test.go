package models

import (
	"testing"
	"time"
)

func TestInferStep(t *testing.T) {
	tests := []struct {
		name    string
		session *CallSession
		want    int
	}{
		{"nil session", nil, StepName},
		{"empty", &CallSession{}, StepName},
		{"whitespace name", &CallSession{Name: "  "}, StepName},
		{"name only", &CallSession{Name: "Jane Doe"}, StepAddress},
		{"name and address", &CallSession{Name: "Jane", ServiceAddress: "45 Oak Street, Bowie 20715"}, StepJob},
		{"stored step ignored", &CallSession{Step: StepCallback, Name: "Jane", ServiceAddress: "45 Oak"}, StepJob},
		{"job candidate is not a job", &CallSession{Name: "Jane", ServiceAddress: "45 Oak", JobCandidate: "leak"}, StepJob},
		{"timing missing", &CallSession{Name: "Jane", ServiceAddress: "45 Oak", JobDescription: "leak"}, StepTiming},
		{"all fields", &CallSession{Name: "Jane", ServiceAddress: "45 Oak", JobDescription: "leak", Timing: "tomorrow"}, StepCallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.InferStep(); got != tt.want {
				t.Errorf("InferStep() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAssembleAddress(t *testing.T) {
	s := &CallSession{AddrNumber: "45", AddrStreet: "Oak Street", AddrCity: "Bowie"}
	if _, ok := s.AssembleAddress(); ok {
		t.Fatal("expected incomplete address")
	}
	s.AddrZip = "20715"
	got, ok := s.AssembleAddress()
	if !ok {
		t.Fatal("expected complete address")
	}
	if got != "45 Oak Street, Bowie 20715" {
		t.Errorf("unexpected address %q", got)
	}
}

func TestNewCallSession_DefaultsContractorKey(t *testing.T) {
	s := NewCallSession("CA1", "", "+17775550100", 100)
	if s.ContractorKey != UnknownContractor {
		t.Errorf("expected contractor key %q, got %q", UnknownContractor, s.ContractorKey)
	}
	if s.Callback != "+17775550100" {
		t.Errorf("expected callback to default to caller, got %q", s.Callback)
	}
}

func TestSubmission(t *testing.T) {
	s := &CallSession{CallID: "CA1", Name: "Jane", ServiceAddress: "45 Oak", JobDescription: "leak", Timing: "now", Callback: "2405551234", ContractorKey: "+15550001111"}
	now := time.Unix(1700000000, 0)
	sub := s.Submission(now)
	if sub.CallID != "CA1" || sub.Callback != "2405551234" || !sub.CompletedAt.Equal(now) {
		t.Errorf("unexpected submission %+v", sub)
	}
}

func TestInstructionSay_PrependsPreamble(t *testing.T) {
	in := NewTerminal("Goodbye.").Say("Thanks.")
	in = in.Say("First.")
	if len(in.Preamble) != 2 || in.Preamble[0] != "First." || in.Preamble[1] != "Thanks." {
		t.Errorf("unexpected preamble %v", in.Preamble)
	}
}

func TestContractorDisplayName(t *testing.T) {
	if got := (ContractorProfile{}).DisplayName(); got != DefaultBusinessName {
		t.Errorf("expected default name, got %q", got)
	}
	if got := (ContractorProfile{BusinessName: "Acme"}).DisplayName(); got != "Acme" {
		t.Errorf("expected Acme, got %q", got)
	}
}

func TestPromptCallbackPath(t *testing.T) {
	tests := []struct {
		p    Prompt
		want string
	}{
		{Prompt{NextStep: 0}, "/voice-process?step=0"},
		{Prompt{NextStep: 1, Field: "street"}, "/voice-process?field=street&step=1"},
		{Prompt{NextStep: 0, Field: "name", Retry: 2}, "/voice-process?field=name&retry=2&step=0"},
		{Prompt{NextStep: 3, Action: "/resume-choice?old=CA1&step=3"}, "/resume-choice?old=CA1&step=3"},
	}
	for _, tt := range tests {
		if got := tt.p.CallbackPath(); got != tt.want {
			t.Errorf("CallbackPath() = %q, want %q", got, tt.want)
		}
	}
}
