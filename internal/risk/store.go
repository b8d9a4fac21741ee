package risk

import (
	"context"

	id "vigil/pkg/domain"
)

// Store is the append-only persistence boundary for assessment logs.
// Rows are never updated or deleted.
type Store interface {
	Append(ctx context.Context, log *AssessmentLog) error
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*AssessmentLog, error)
}
