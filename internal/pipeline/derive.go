package pipeline

import "context"

// DeriveAssessment computes the deterministic class metrics.
func (m *Machine[T]) DeriveAssessment(_ context.Context, r *Run[T]) State {
	r.Report.Derived = m.class.Derive(r.Payloads, Outcome{
		Validation:   r.Report.Validation,
		Verification: r.Report.Verification,
	}, m.now())
	return StateReport
}
