// Package voice renders intake instructions as TwiML and validates
// inbound Twilio webhook signatures.
package voice

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go/twiml"

	"github.com/BTreeMap/IntakeLine/internal/models"
)

// Spoken voice settings used for every Say.
const (
	DefaultVoice    = "Polly.Joanna"
	DefaultLanguage = "en-US"
)

// Transfer and voicemail limits.
const (
	DialTimeoutSeconds  = 20
	VoicemailMaxSeconds = 120
)

// Renderer turns instructions into TwiML documents.
type Renderer struct {
	voice    string
	language string
	baseURL  string
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithVoice overrides the text-to-speech voice.
func WithVoice(voice string) RendererOption {
	return func(r *Renderer) { r.voice = voice }
}

// WithBaseURL makes callback URLs absolute. Relative paths are resolved by
// the platform against the current request URL, so this is only needed
// behind proxies that rewrite paths.
func WithBaseURL(base string) RendererOption {
	return func(r *Renderer) { r.baseURL = strings.TrimRight(base, "/") }
}

// NewRenderer creates a Renderer with the default voice.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{voice: DefaultVoice, language: DefaultLanguage}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) say(text string) *twiml.VoiceSay {
	return &twiml.VoiceSay{Message: text, Voice: r.voice, Language: r.language}
}

func (r *Renderer) url(path string) string {
	if r.baseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return r.baseURL + path
}

// Elements converts an instruction to TwiML verbs.
func (r *Renderer) Elements(in models.Instruction) []twiml.Element {
	var verbs []twiml.Element
	if in.Pause > 0 {
		verbs = append(verbs, &twiml.VoicePause{Length: strconv.Itoa(in.Pause)})
	}
	for _, line := range in.Preamble {
		verbs = append(verbs, r.say(line))
	}

	switch in.Kind {
	case models.InstructionPrompt:
		if in.Prompt != nil {
			verbs = append(verbs, r.gather(*in.Prompt))
		}
	case models.InstructionTransfer:
		verbs = append(verbs, &twiml.VoiceDial{
			Number:   in.TransferTo,
			CallerId: in.CallerID,
			Timeout:  strconv.Itoa(DialTimeoutSeconds),
		})
	case models.InstructionVoicemail:
		verbs = append(verbs,
			&twiml.VoiceRecord{
				MaxLength: strconv.Itoa(VoicemailMaxSeconds),
				PlayBeep:  "true",
				Action:    r.url(in.RecordAction),
				Method:    "POST",
			},
			&twiml.VoiceHangup{},
		)
	case models.InstructionTerminal:
		if in.Closing != "" {
			verbs = append(verbs, r.say(in.Closing))
		}
		verbs = append(verbs, &twiml.VoicePause{Length: "1"}, &twiml.VoiceHangup{})
	}
	return verbs
}

// gather builds a Gather that always calls back, even on empty input, so
// silence reaches the state machine's retry handling.
func (r *Renderer) gather(p models.Prompt) *twiml.VoiceGather {
	g := &twiml.VoiceGather{
		Input:               string(p.Input),
		Action:              r.url(p.CallbackPath()),
		Method:              "POST",
		ActionOnEmptyResult: "true",
		FinishOnKey:         p.FinishOnKey,
		Hints:               p.Hints,
		InnerElements:       []twiml.Element{r.say(p.Text)},
	}
	if p.Input == "" {
		g.Input = string(models.InputDTMF)
	}
	if p.Timeout > 0 {
		g.Timeout = strconv.Itoa(p.Timeout)
	}
	if p.NumDigits > 0 {
		g.NumDigits = strconv.Itoa(p.NumDigits)
	}
	if strings.Contains(g.Input, string(models.InputSpeech)) {
		g.SpeechTimeout = "auto"
		g.ProfanityFilter = "false"
	}
	return g
}

// Render produces the TwiML document for an instruction.
func (r *Renderer) Render(in models.Instruction) (string, error) {
	doc, err := twiml.Voice(r.Elements(in))
	if err != nil {
		slog.Error("Renderer.Render: twiml encode failed", "kind", in.Kind, "error", err)
		return "", fmt.Errorf("render %s instruction: %w", in.Kind, err)
	}
	return doc, nil
}

// RenderMessage produces a messaging TwiML reply with a single message.
func (r *Renderer) RenderMessage(body string) (string, error) {
	doc, err := twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: body}})
	if err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}
	return doc, nil
}
