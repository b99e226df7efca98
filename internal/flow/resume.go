package flow

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/BTreeMap/IntakeLine/internal/models"
)

// resolve maps a turn's call id to the canonical id whose session it
// belongs to. An existing alias is followed one hop. On the first question
// of a leg, a resume pointer for the same number pair that names a
// different conversation with a stored session wins, and the incoming id is
// aliased straight to it.
func (m *Machine) resolve(ctx context.Context, turn models.Turn) string {
	canonical := m.aliases.Resolve(ctx, turn.CallID)
	if turn.Step != models.StepName {
		return canonical
	}

	ptr := m.resume.Get(ctx, turn.Called, turn.Caller)
	if ptr == "" || ptr == canonical || !m.sessions.Exists(ctx, ptr) {
		return canonical
	}

	m.aliases.Set(ctx, turn.CallID, ptr)
	if canonical == turn.CallID {
		m.discardUnstarted(ctx, canonical)
	}
	slog.Info("Machine.resolve: continuing earlier conversation", "callID", turn.CallID, "canonicalID", ptr)
	return ptr
}

// discardUnstarted drops a session on which nothing has been captured, so a
// leg that turns out to be a continuation does not linger as a live call.
func (m *Machine) discardUnstarted(ctx context.Context, callID string) {
	s, err := m.sessions.Load(ctx, callID)
	if err != nil || s == nil {
		return
	}
	if s.InferStep() != models.StepName || s.NameCandidate != "" {
		return
	}
	if err := m.sessions.Delete(ctx, callID); err != nil {
		slog.Warn("Machine.discardUnstarted: delete failed", "callID", callID, "error", err)
	}
	m.live.Unregister(ctx, s.ContractorKey, callID)
	slog.Debug("Machine.discardUnstarted", "callID", callID)
}

// newSession creates and registers the session for a fresh conversation.
func (m *Machine) newSession(ctx context.Context, callID string, turn models.Turn) *models.CallSession {
	s := models.NewCallSession(callID, turn.Called, turn.Caller, m.now().Unix())
	if err := m.sessions.Save(ctx, s); err != nil {
		slog.Error("Machine.newSession: save failed", "callID", callID, "error", err)
	}
	m.live.Register(ctx, s.ContractorKey, callID)
	slog.Info("Machine.newSession: fresh conversation", "callID", callID, "contractor", s.ContractorKey)
	return s
}

// StartFresh begins a new intake on the turn's call id and asks for the
// caller's name. If the id already has a session, its current prompt is
// repeated instead.
func (m *Machine) StartFresh(ctx context.Context, turn models.Turn) models.Instruction {
	existing, err := m.sessions.Load(ctx, turn.CallID)
	if err == nil && existing != nil {
		slog.Debug("Machine.StartFresh: session already exists", "callID", turn.CallID)
		return m.reprompt(ctx, existing)
	}
	m.newSession(ctx, turn.CallID, turn)
	return speechPrompt(models.StepName, fieldName, textAskName, hintsName)
}

// OfferResume checks the (called, caller) pair for an unfinished
// conversation with progress and, if found, offers to resume it. Otherwise
// a fresh intake starts.
func (m *Machine) OfferResume(ctx context.Context, turn models.Turn) models.Instruction {
	old := m.resume.Get(ctx, turn.Called, turn.Caller)
	if old != "" && old != turn.CallID {
		s, err := m.sessions.Load(ctx, old)
		if err == nil && s != nil {
			if step := s.InferStep(); step > models.StepName {
				slog.Info("Machine.OfferResume: offering resume", "callID", turn.CallID, "oldID", old, "step", step)
				return models.NewPrompt(models.Prompt{
					Text:      textResumeOffer,
					Input:     models.InputDTMF,
					NumDigits: 1,
					Timeout:   3,
					NextStep:  step,
					Action:    resumeChoiceAction(old, step),
				})
			}
		}
	}
	return m.StartFresh(ctx, turn)
}

func resumeChoiceAction(oldID string, step int) string {
	q := url.Values{}
	q.Set("old", oldID)
	q.Set("step", strconv.Itoa(step))
	return ResumeChoicePath + "?" + q.Encode()
}

// ChooseResume applies the caller's answer to the resume offer. Pressing 2
// abandons the old conversation and starts over on the new leg; anything
// else, silence included, resumes the old conversation at the step its
// collected fields imply.
func (m *Machine) ChooseResume(ctx context.Context, turn models.Turn, oldID string) models.Instruction {
	if turn.Digits == "2" {
		slog.Info("Machine.ChooseResume: caller chose to start over", "callID", turn.CallID, "oldID", oldID)
		m.abandon(ctx, oldID, turn)
		return m.StartFresh(ctx, turn).Say(textRestart)
	}

	canonical := m.aliases.Resolve(ctx, oldID)
	if canonical == "" || canonical == turn.CallID {
		return m.StartFresh(ctx, turn)
	}
	s, err := m.sessions.Load(ctx, canonical)
	if err != nil || s == nil || s.InferStep() == models.StepName {
		slog.Info("Machine.ChooseResume: nothing to resume, starting fresh", "callID", turn.CallID, "oldID", oldID)
		return m.StartFresh(ctx, turn)
	}

	m.aliases.Set(ctx, turn.CallID, canonical)
	m.resume.Save(ctx, turn.Called, turn.Caller, canonical)
	s.Retries = 0
	slog.Info("Machine.ChooseResume: resuming", "callID", turn.CallID, "canonicalID", canonical, "step", s.InferStep())
	return m.reprompt(ctx, s).Say(textResuming)
}

// abandon discards the old conversation for the pair: its session, its
// resume pointer and its live-call membership.
func (m *Machine) abandon(ctx context.Context, oldID string, turn models.Turn) {
	m.resume.Clear(ctx, turn.Called, turn.Caller)
	if oldID == "" {
		return
	}
	canonical := m.aliases.Resolve(ctx, oldID)
	contractorKey := turn.Called
	if s, err := m.sessions.Load(ctx, canonical); err == nil && s != nil {
		contractorKey = s.ContractorKey
	}
	if contractorKey == "" {
		contractorKey = models.UnknownContractor
	}
	if err := m.sessions.Delete(ctx, canonical); err != nil {
		slog.Warn("Machine.abandon: delete failed", "callID", canonical, "error", err)
	}
	m.live.Unregister(ctx, contractorKey, canonical)
	slog.Info("Machine.abandon: conversation abandoned", "callID", canonical)
}
