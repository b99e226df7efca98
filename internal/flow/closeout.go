package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/IntakeLine/internal/models"
)

// closeOut finishes a conversation whose fields are all collected. The sink
// is called with a bounded context and its failure is only logged; the
// session, the resume pointer and the live-call membership are removed no
// matter how submission went.
func (m *Machine) closeOut(ctx context.Context, s *models.CallSession, turn models.Turn) models.Instruction {
	sub := s.Submission(m.now())
	slog.Info("Machine.closeOut: intake complete", "callID", s.CallID, "contractor", s.ContractorKey, "nameConfirmed", s.NameConfirmed)

	if m.sink != nil {
		sctx, cancel := context.WithTimeout(ctx, m.submitTimeout)
		profile := m.lookup(sctx, s.ToNumber)
		sub.BusinessName = profile.BusinessName
		sub.NotifyEmail = profile.NotifyEmail
		sub.NotifyPhone = profile.NotifyPhone
		if err := m.sink.SubmitIntake(sctx, sub); err != nil {
			slog.Error("Machine.closeOut: completion submit failed", "callID", s.CallID, "error", err)
		}
		cancel()
	}

	if err := m.sessions.Delete(ctx, s.CallID); err != nil {
		slog.Error("Machine.closeOut: delete session failed", "callID", s.CallID, "error", err)
	}
	m.resume.Clear(ctx, turn.Called, turn.Caller)
	m.live.Unregister(ctx, s.ContractorKey, s.CallID)
	if err := m.sessions.MarkClosed(ctx, s.CallID); err != nil {
		slog.Warn("Machine.closeOut: closed marker not written", "callID", s.CallID, "error", err)
	}
	return models.NewTerminal(textComplete)
}
