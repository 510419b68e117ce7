package pipeline

import (
	"context"
	"fmt"

	"github.com/sells-group/docintel/internal/model"
)

// Validate applies the schema findings and the class rules. It never blocks
// the run: issues are recorded and the run moves on.
func (m *Machine[T]) Validate(_ context.Context, r *Run[T]) State {
	var issues []string
	for _, e := range r.Report.Extractions {
		for _, si := range e.SchemaIssues {
			issues = append(issues, fmt.Sprintf("%s: %s", e.DocumentID, si))
		}
	}
	issues = append(issues, m.class.Validate(r.Payloads, m.now())...)

	r.Report.Validation = model.ValidationOutcome{
		Valid:  len(issues) == 0,
		Issues: issues,
	}
	r.note = fmt.Sprintf("%d issues", len(issues))
	return StateCrossVerify
}
