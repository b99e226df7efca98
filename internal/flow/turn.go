package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/phone"
)

// ProcessTurn runs one intake turn: resolve the canonical conversation,
// load or create its session, and consume the caller's input if the turn
// matches the stage the session is waiting on. A turn for any other stage
// (a resumed leg, a stale or redelivered request) is answered with the
// current prompt and changes nothing.
func (m *Machine) ProcessTurn(ctx context.Context, turn models.Turn) models.Instruction {
	callID := m.resolve(ctx, turn)
	slog.Debug("Machine.ProcessTurn", "callID", turn.CallID, "canonicalID", callID, "step", turn.Step, "field", turn.Field,
		"hasDigits", turn.Digits != "", "hasSpeech", turn.Speech != "")

	if m.sessions.IsClosed(ctx, callID) {
		slog.Info("Machine.ProcessTurn: conversation already closed", "canonicalID", callID)
		return models.NewTerminal(textComplete)
	}

	s, err := m.sessions.Load(ctx, callID)
	if err != nil {
		slog.Error("Machine.ProcessTurn: load failed, starting fresh", "canonicalID", callID, "error", err)
	}
	if s == nil {
		s = m.newSession(ctx, callID, turn)
	}

	step, field := stageOf(s)
	if s.Step != step {
		slog.Debug("Machine.ProcessTurn: stored step reconciled", "canonicalID", callID, "stored", s.Step, "inferred", step)
		s.Step = step
	}

	if turn.Step != step || (turn.Field != "" && turn.Field != field) {
		slog.Info("Machine.ProcessTurn: turn does not match current stage, re-prompting",
			"canonicalID", callID, "turnStep", turn.Step, "turnField", turn.Field, "step", step, "field", field)
		return m.reprompt(ctx, s)
	}

	if !turn.HasInput() {
		return m.noInput(ctx, s, turn)
	}
	return m.consume(ctx, s, turn, field)
}

// reprompt renders the current prompt, saving if rendering marked the
// address intro as played or the stored step was reconciled.
func (m *Machine) reprompt(ctx context.Context, s *models.CallSession) models.Instruction {
	in, _ := promptFor(s)
	m.save(ctx, s)
	return in
}

func (m *Machine) save(ctx context.Context, s *models.CallSession) {
	if err := m.sessions.Save(ctx, s); err != nil {
		slog.Error("Machine.save failed", "callID", s.CallID, "error", err)
	}
}

// noInput counts a silent turn. The count echoed on the callback URL is
// used when it is ahead of the stored one, so silence still ends the call
// when the session could not be persisted.
func (m *Machine) noInput(ctx context.Context, s *models.CallSession, turn models.Turn) models.Instruction {
	if turn.Retry > s.Retries {
		s.Retries = turn.Retry
	}
	s.Retries++
	if s.Retries > MaxSilentRetries {
		slog.Info("Machine.noInput: retries exhausted, ending call", "callID", s.CallID, "retries", s.Retries)
		// The call ends but the conversation stays resumable from a new leg.
		s.Retries = 0
		m.save(ctx, s)
		return models.NewTerminal(textSilenceHangup)
	}
	slog.Debug("Machine.noInput: re-prompting", "callID", s.CallID, "retries", s.Retries)
	in := m.reprompt(ctx, s)
	if in.Prompt != nil {
		p := *in.Prompt
		p.Retry = s.Retries
		in.Prompt = &p
	}
	return in
}

// invalid re-prompts the current stage after an apology without touching
// the retry counter.
func (m *Machine) invalid(ctx context.Context, s *models.CallSession, apology string) models.Instruction {
	slog.Debug("Machine.invalid: input rejected", "callID", s.CallID, "step", s.Step)
	return m.reprompt(ctx, s).Say(apology)
}

// advance records a captured field: retries reset, stored step brought up
// to date, session saved and the resume pointer refreshed. It returns the
// prompt for whatever the session now waits on.
func (m *Machine) advance(ctx context.Context, s *models.CallSession, turn models.Turn) models.Instruction {
	s.Retries = 0
	s.Step = s.InferStep()
	in, _ := promptFor(s)
	m.save(ctx, s)
	m.resume.Save(ctx, turn.Called, turn.Caller, s.CallID)
	slog.Info("Machine.advance: field captured", "callID", s.CallID, "step", s.Step)
	return in
}

// hold saves a transient change (a candidate awaiting confirmation) and
// returns the next prompt. The resume pointer is left alone.
func (m *Machine) hold(ctx context.Context, s *models.CallSession) models.Instruction {
	s.Retries = 0
	return m.reprompt(ctx, s)
}

func (m *Machine) consume(ctx context.Context, s *models.CallSession, turn models.Turn, field string) models.Instruction {
	speech := strings.TrimSpace(turn.Speech)
	digits := strings.TrimSpace(turn.Digits)
	if speech == "" && digits == "" {
		return m.noInput(ctx, s, turn)
	}

	switch field {
	case fieldName:
		if speech == "" {
			return m.invalid(ctx, s, textBadSpeech)
		}
		s.NameCandidate = speech
		return m.hold(ctx, s)

	case fieldNameConfirm:
		if digits == "" {
			s.NameCandidate = speech
			return m.hold(ctx, s)
		}
		switch digits {
		case "1":
			s.Name = s.NameCandidate
			s.NameConfirmed = true
			s.NameAttempts = 0
			s.NameCandidate = ""
			return m.advance(ctx, s, turn).Say(textNameThanks)
		case "2":
			s.NameAttempts++
			if s.NameAttempts >= 2 {
				slog.Info("Machine.consume: name accepted unconfirmed", "callID", s.CallID)
				s.Name = s.NameCandidate
				s.NameConfirmed = false
				s.NameAttempts = 0
				s.NameCandidate = ""
				return m.advance(ctx, s, turn).Say(textNameUnconfirmed)
			}
			s.NameCandidate = ""
			return m.hold(ctx, s)
		default:
			m.save(ctx, s)
			return confirmPrompt(s.Step, field, textConfirmAgain)
		}

	case fieldHouse:
		house := phone.Digits(digits)
		if house == "" {
			return m.invalid(ctx, s, textBadHouse)
		}
		s.AddrNumber = house
		return m.captureAddress(ctx, s, turn)

	case fieldStreet:
		if speech == "" {
			return m.invalid(ctx, s, textBadSpeech)
		}
		s.AddrStreet = speech
		return m.captureAddress(ctx, s, turn)

	case fieldCity:
		if speech == "" {
			return m.invalid(ctx, s, textBadSpeech)
		}
		s.AddrCity = speech
		return m.captureAddress(ctx, s, turn)

	case fieldZip:
		zip := phone.Digits(digits)
		if len(zip) != 5 {
			return m.invalid(ctx, s, textBadZip)
		}
		s.AddrZip = zip
		return m.captureAddress(ctx, s, turn)

	case fieldJob:
		if speech == "" {
			return m.invalid(ctx, s, textBadSpeech)
		}
		s.JobCandidate = speech
		return m.hold(ctx, s)

	case fieldJobConfirm:
		if digits == "" {
			s.JobCandidate = speech
			return m.hold(ctx, s)
		}
		switch digits {
		case "1":
			s.JobDescription = s.JobCandidate
			s.JobCandidate = ""
			return m.advance(ctx, s, turn)
		case "2":
			// No attempt cap here: a job description is only ever stored confirmed.
			s.JobCandidate = ""
			return m.hold(ctx, s)
		default:
			m.save(ctx, s)
			return confirmPrompt(s.Step, field, textConfirmAgain)
		}

	case fieldTiming:
		if speech == "" {
			return m.invalid(ctx, s, textBadSpeech)
		}
		s.Timing = speech
		return m.advance(ctx, s, turn)

	default:
		raw := digits
		if raw == "" {
			raw = speech
		}
		callback := phone.Digits(raw)
		if len(callback) < 7 {
			callback = turn.Caller
		}
		if callback != "" {
			s.Callback = callback
		}
		return m.closeOut(ctx, s, turn)
	}
}

// captureAddress stores an address sub-field and, once all four are
// present, assembles the service address.
func (m *Machine) captureAddress(ctx context.Context, s *models.CallSession, turn models.Turn) models.Instruction {
	if addr, ok := s.AssembleAddress(); ok {
		s.ServiceAddress = addr
	}
	return m.advance(ctx, s, turn)
}
