package pipeline

import (
	"context"

	"github.com/sells-group/docintel/internal/model"
)

// Report freezes the run. It always runs, including after a failed extract.
func (m *Machine[T]) Report(_ context.Context, r *Run[T]) State {
	rep := r.Report
	if rep.Status == "" {
		rep.Status = model.ReportComplete
		if len(rep.Extractions) == 0 {
			rep.Status = model.ReportIncomplete
		}
	}
	rep.FinalState = string(StateReport)
	rep.FinishedAt = m.now()
	r.note = string(rep.Status)
	return StateDone
}
