package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/phone"
)

// DefaultSMSReply answers inbound texts.
const DefaultSMSReply = "Thanks for your message. We received it and will follow up shortly."

// formValue returns the first non-empty form value among keys.
func formValue(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.FormValue(k)); v != "" {
			return v
		}
	}
	return ""
}

// parseTurn builds a Turn from the platform's webhook parameters. Numbers
// are normalized to E.164 so resume pointers match across calls.
func parseTurn(r *http.Request) models.Turn {
	turn := models.Turn{
		CallID: formValue(r, "CallSid"),
		Called: phone.NormalizeE164(formValue(r, "To", "Called")),
		Caller: phone.NormalizeE164(formValue(r, "From", "Caller")),
		Field:  r.URL.Query().Get("field"),
		Digits: formValue(r, "Digits"),
		Speech: formValue(r, "SpeechResult", "UnstableSpeechResult"),
	}
	if step, err := strconv.Atoi(r.URL.Query().Get("step")); err == nil {
		turn.Step = step
	}
	if retry, err := strconv.Atoi(r.URL.Query().Get("retry")); err == nil && retry > 0 {
		turn.Retry = retry
	}
	return turn
}

func (s *Server) voiceHandler(w http.ResponseWriter, r *http.Request) {
	turn := parseTurn(r)
	slog.Info("Server.voiceHandler: incoming call", "callID", turn.CallID, "called", turn.Called)
	s.writeTwiML(w, s.machine.Greeting(r.Context(), turn.Called))
}

func (s *Server) voiceMenuHandler(w http.ResponseWriter, r *http.Request) {
	s.writeTwiML(w, s.machine.Menu(r.Context(), parseTurn(r)))
}

func (s *Server) resumeChoiceHandler(w http.ResponseWriter, r *http.Request) {
	turn := parseTurn(r)
	oldID := r.URL.Query().Get("old")
	slog.Debug("Server.resumeChoiceHandler", "callID", turn.CallID, "oldID", oldID, "digits", turn.Digits)
	s.writeTwiML(w, s.machine.ChooseResume(r.Context(), turn, oldID))
}

func (s *Server) voiceIntakeHandler(w http.ResponseWriter, r *http.Request) {
	s.writeTwiML(w, s.machine.StartFresh(r.Context(), parseTurn(r)))
}

func (s *Server) voiceEmergencyHandler(w http.ResponseWriter, r *http.Request) {
	s.writeTwiML(w, s.machine.Emergency(r.Context(), parseTurn(r).Called))
}

func (s *Server) voiceProcessHandler(w http.ResponseWriter, r *http.Request) {
	turn := parseTurn(r)
	slog.Debug("Server.voiceProcessHandler", "callID", turn.CallID, "step", turn.Step, "field", turn.Field, "hasInput", turn.HasInput())
	s.writeTwiML(w, s.machine.ProcessTurn(r.Context(), turn))
}

func (s *Server) voicemailHandler(w http.ResponseWriter, r *http.Request) {
	turn := parseTurn(r)
	vm := models.Voicemail{
		CallID:          turn.CallID,
		Called:          turn.Called,
		From:            turn.Caller,
		RecordingURL:    formValue(r, "RecordingUrl"),
		DurationSeconds: formValue(r, "RecordingDuration"),
	}
	s.writeTwiML(w, s.machine.Voicemail(r.Context(), vm))
}

func (s *Server) smsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Info("Server.smsHandler: inbound text", "from", formValue(r, "From"), "length", len(formValue(r, "Body")))
	doc, err := s.renderer.RenderMessage(s.smsReply)
	if err != nil {
		slog.Error("Server.smsHandler: render failed", "error", err)
		doc = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	}
	writeXML(w, doc)
}
