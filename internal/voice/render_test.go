package voice

import (
	"strings"
	"testing"

	"github.com/BTreeMap/IntakeLine/internal/models"
)

func mustRender(t *testing.T, r *Renderer, in models.Instruction) string {
	t.Helper()
	doc, err := r.Render(in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return doc
}

func assertContains(t *testing.T, doc string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(doc, p) {
			t.Errorf("expected %q in:\n%s", p, doc)
		}
	}
}

func TestRenderSpeechPrompt(t *testing.T) {
	r := NewRenderer()
	in := models.NewPrompt(models.Prompt{
		Text:     "Great. Now please say the street name.",
		Input:    models.InputSpeech,
		Hints:    "Main Street, Oak Street",
		Timeout:  8,
		NextStep: 1,
		Field:    "street",
	}).Say("Thanks.")

	doc := mustRender(t, r, in)
	assertContains(t, doc,
		"<Response>",
		"<Gather",
		`input="speech"`,
		`speechTimeout="auto"`,
		`actionOnEmptyResult="true"`,
		`timeout="8"`,
		"step=1",
		"field=street",
		`voice="Polly.Joanna"`,
		"Great. Now please say the street name.",
	)
	if strings.Index(doc, "Thanks.") > strings.Index(doc, "<Gather") {
		t.Error("preamble must be spoken before the gather")
	}
}

func TestRenderDTMFPrompt(t *testing.T) {
	r := NewRenderer()
	doc := mustRender(t, r, models.NewPrompt(models.Prompt{
		Text:      "Finally, please enter the five digit zip code.",
		Input:     models.InputDTMF,
		NumDigits: 5,
		Timeout:   10,
		NextStep:  1,
		Field:     "zip",
	}))
	assertContains(t, doc, `input="dtmf"`, `numDigits="5"`)
	if strings.Contains(doc, "speechTimeout") {
		t.Error("dtmf gather must not carry a speech timeout")
	}
}

func TestRenderPromptWithActionAndBaseURL(t *testing.T) {
	r := NewRenderer(WithBaseURL("https://intake.example.com/"))
	in := models.NewPrompt(models.Prompt{Text: "Press 2 to start over.", Input: models.InputDTMF, NumDigits: 1, Action: "/resume-choice?old=CA1&step=2"})
	in.Pause = 2
	doc := mustRender(t, r, in)
	assertContains(t, doc, "https://intake.example.com/resume-choice?old=CA1", `<Pause length="2"`)
}

func TestRenderTransfer(t *testing.T) {
	doc := mustRender(t, NewRenderer(), models.NewTransfer("+12024561111", "+15550001111").Say("Okay. Connecting you now."))
	assertContains(t, doc, "<Dial", `callerId="+15550001111"`, `timeout="20"`, "+12024561111", "Connecting you now.")
}

func TestRenderVoicemail(t *testing.T) {
	doc := mustRender(t, NewRenderer(), models.NewVoicemail("/twilio/voicemail"))
	assertContains(t, doc, "<Record", `maxLength="120"`, `playBeep="true"`, `action="/twilio/voicemail"`, "<Hangup")
}

func TestRenderTerminal(t *testing.T) {
	doc := mustRender(t, NewRenderer(WithVoice("Polly.Matthew")), models.NewTerminal("Goodbye."))
	assertContains(t, doc, "Goodbye.", `voice="Polly.Matthew"`, "<Hangup")
	if strings.Index(doc, "Goodbye.") > strings.Index(doc, "<Hangup") {
		t.Error("closing must be spoken before hanging up")
	}
}

func TestRenderMessage(t *testing.T) {
	doc, err := NewRenderer().RenderMessage("Thanks for texting.")
	if err != nil {
		t.Fatalf("RenderMessage: %v", err)
	}
	assertContains(t, doc, "<Message", "Thanks for texting.")
}
