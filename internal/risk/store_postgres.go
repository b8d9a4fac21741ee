package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "vigil/pkg/domain"
	"vigil/pkg/platform/tx"
)

// PostgresStore persists assessment logs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) exec(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, log *AssessmentLog) error {
	signals, err := json.Marshal(log.Signals)
	if err != nil {
		return fmt.Errorf("marshal risk signals: %w", err)
	}

	const q = `
		INSERT INTO risk_assessment_logs (id, tenant_id, subject_id, level, score, signals, recommended_action, applied_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.exec(ctx).ExecContext(ctx, q,
		log.ID, uuid.UUID(log.TenantID), uuid.UUID(log.SubjectID),
		string(log.Level), log.Score, signals,
		log.RecommendedAction, log.AppliedAction, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append risk assessment log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*AssessmentLog, error) {
	const q = `
		SELECT id, tenant_id, subject_id, level, score, signals, recommended_action, applied_action, created_at
		FROM risk_assessment_logs
		WHERE subject_id = $1
		ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, q, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list risk assessment logs: %w", err)
	}
	defer rows.Close()

	var out []*AssessmentLog
	for rows.Next() {
		var (
			log     AssessmentLog
			tenant  uuid.UUID
			subject uuid.UUID
			level   string
			signals []byte
		)
		if err := rows.Scan(&log.ID, &tenant, &subject, &level, &log.Score, &signals, &log.RecommendedAction, &log.AppliedAction, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan risk assessment log: %w", err)
		}
		log.TenantID = id.TenantID(tenant)
		log.SubjectID = id.SubjectID(subject)
		log.Level = Level(level)
		if len(signals) > 0 {
			if err := json.Unmarshal(signals, &log.Signals); err != nil {
				return nil, fmt.Errorf("unmarshal risk signals: %w", err)
			}
		}
		out = append(out, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk assessment logs: %w", err)
	}
	return out, nil
}
