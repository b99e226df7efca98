package models

import (
	"net/url"
	"strconv"
)

// InstructionKind identifies what the telephony platform should do next.
type InstructionKind string

const (
	// InstructionPrompt speaks text and gathers the caller's next input.
	InstructionPrompt InstructionKind = "prompt"
	// InstructionTransfer connects the caller to a live number.
	InstructionTransfer InstructionKind = "transfer"
	// InstructionVoicemail records a voicemail from the caller.
	InstructionVoicemail InstructionKind = "voicemail"
	// InstructionTerminal speaks a closing statement and ends the call.
	InstructionTerminal InstructionKind = "terminal"
)

// InputMode is the kind of input a prompt expects.
type InputMode string

const (
	InputSpeech    InputMode = "speech"
	InputDTMF      InputMode = "dtmf"
	InputDTMFOrSay InputMode = "dtmf speech"
)

// Prompt describes a gather: what to say and how to collect the reply.
type Prompt struct {
	Text        string    `json:"text"`
	Input       InputMode `json:"input"`
	NumDigits   int       `json:"num_digits,omitempty"`
	FinishOnKey string    `json:"finish_on_key,omitempty"`
	Hints       string    `json:"hints,omitempty"`
	// Timeout is in seconds; zero leaves the platform default.
	Timeout int `json:"timeout,omitempty"`
	// NextStep and Field are carried back on the callback URL for
	// /voice-process prompts. Field names the sub-stage within the step.
	NextStep int    `json:"next_step"`
	Field    string `json:"field,omitempty"`
	// Retry echoes the silent-turn count so it survives a store outage.
	Retry int `json:"retry,omitempty"`
	// Action overrides the callback path.
	Action string `json:"action,omitempty"`
}

// ProcessPath is the webhook path every intake turn is posted to.
const ProcessPath = "/voice-process"

// CallbackPath returns the path the platform posts the gathered input to.
func (p Prompt) CallbackPath() string {
	if p.Action != "" {
		return p.Action
	}
	q := url.Values{}
	q.Set("step", strconv.Itoa(p.NextStep))
	if p.Field != "" {
		q.Set("field", p.Field)
	}
	if p.Retry > 0 {
		q.Set("retry", strconv.Itoa(p.Retry))
	}
	return ProcessPath + "?" + q.Encode()
}

// Instruction is the decision the intake machine hands to the voice renderer.
type Instruction struct {
	Kind InstructionKind `json:"kind"`
	// Pause is seconds of silence before anything is spoken.
	Pause int `json:"pause,omitempty"`
	// Preamble is spoken, in order, before the main action.
	Preamble []string `json:"preamble,omitempty"`
	Prompt   *Prompt  `json:"prompt,omitempty"`

	TransferTo string `json:"transfer_to,omitempty"`
	CallerID   string `json:"caller_id,omitempty"`
	// RecordAction is the callback path for a finished voicemail recording.
	RecordAction string `json:"record_action,omitempty"`
	Closing      string `json:"closing,omitempty"`
}

// Say prepends spoken lines to the instruction and returns it.
func (i Instruction) Say(lines ...string) Instruction {
	i.Preamble = append(append([]string{}, lines...), i.Preamble...)
	return i
}

// NewPrompt builds a prompt instruction.
func NewPrompt(p Prompt) Instruction {
	return Instruction{Kind: InstructionPrompt, Prompt: &p}
}

// NewTerminal builds an instruction that ends the call after a closing statement.
func NewTerminal(closing string) Instruction {
	return Instruction{Kind: InstructionTerminal, Closing: closing}
}

// NewTransfer builds an instruction that dials a live number.
func NewTransfer(to, callerID string) Instruction {
	return Instruction{Kind: InstructionTransfer, TransferTo: to, CallerID: callerID}
}

// NewVoicemail builds an instruction that records a message.
func NewVoicemail(recordAction string) Instruction {
	return Instruction{Kind: InstructionVoicemail, RecordAction: recordAction}
}
