package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vigil/internal/monitoring/models"
	screening "vigil/internal/screening/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/platform/tx"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func conn(ctx context.Context, db *sql.DB) dbtx {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return db
}

// PostgresSubjectStore persists subjects in PostgreSQL.
type PostgresSubjectStore struct {
	db *sql.DB
}

func NewPostgresSubjectStore(db *sql.DB) *PostgresSubjectStore {
	return &PostgresSubjectStore{db: db}
}

func (s *PostgresSubjectStore) Save(ctx context.Context, subject *models.Subject) error {
	questionnaire, err := json.Marshal(subject.Questionnaire)
	if err != nil {
		return fmt.Errorf("marshal subject questionnaire: %w", err)
	}
	var lastCheck any
	if subject.LastCheckID != nil {
		lastCheck = uuid.UUID(*subject.LastCheckID)
	}

	const q = `
		INSERT INTO subjects (id, tenant_id, full_name, birth_date, country, kind, questionnaire, status, risk_score, risk_level, monitored, last_check_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			birth_date = EXCLUDED.birth_date,
			country = EXCLUDED.country,
			questionnaire = EXCLUDED.questionnaire,
			status = EXCLUDED.status,
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			monitored = EXCLUDED.monitored,
			last_check_id = EXCLUDED.last_check_id,
			updated_at = EXCLUDED.updated_at`
	_, err = conn(ctx, s.db).ExecContext(ctx, q,
		uuid.UUID(subject.ID), uuid.UUID(subject.TenantID), subject.FullName,
		nullTime(subject.BirthDate), subject.Country, string(subject.Kind),
		questionnaire, string(subject.Status), subject.RiskScore, subject.RiskLevel,
		subject.Monitored, lastCheck, subject.CreatedAt, subject.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save subject: %w", err)
	}
	return nil
}

func (s *PostgresSubjectStore) Get(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	const q = subjectSelect + ` WHERE id = $1`
	subject, err := scanSubject(conn(ctx, s.db).QueryRowContext(ctx, q, uuid.UUID(subjectID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return subject, nil
}

func (s *PostgresSubjectStore) ListMonitored(ctx context.Context, tenantID id.TenantID) ([]*models.Subject, error) {
	const q = subjectSelect + ` WHERE tenant_id = $1 AND monitored ORDER BY created_at`
	rows, err := conn(ctx, s.db).QueryContext(ctx, q, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list monitored subjects: %w", err)
	}
	defer rows.Close()

	var out []*models.Subject
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const subjectSelect = `
	SELECT id, tenant_id, full_name, birth_date, country, kind, questionnaire, status, risk_score, risk_level, monitored, last_check_id, created_at, updated_at
	FROM subjects`

func scanSubject(scanner rowScanner) (*models.Subject, error) {
	var (
		subject       models.Subject
		subjectID     uuid.UUID
		tenantID      uuid.UUID
		birthDate     sql.NullTime
		kind          string
		questionnaire []byte
		status        string
		lastCheck     uuid.NullUUID
	)
	err := scanner.Scan(&subjectID, &tenantID, &subject.FullName, &birthDate,
		&subject.Country, &kind, &questionnaire, &status, &subject.RiskScore,
		&subject.RiskLevel, &subject.Monitored, &lastCheck,
		&subject.CreatedAt, &subject.UpdatedAt)
	if err != nil {
		return nil, err
	}
	subject.ID = id.SubjectID(subjectID)
	subject.TenantID = id.TenantID(tenantID)
	subject.Kind = screening.EntityKind(kind)
	subject.Status = models.SubjectStatus(status)
	if birthDate.Valid {
		subject.BirthDate = &birthDate.Time
	}
	if lastCheck.Valid {
		checkID := id.CheckID(lastCheck.UUID)
		subject.LastCheckID = &checkID
	}
	if len(questionnaire) > 0 {
		if err := json.Unmarshal(questionnaire, &subject.Questionnaire); err != nil {
			return nil, fmt.Errorf("unmarshal subject questionnaire: %w", err)
		}
	}
	return &subject, nil
}

// PostgresAlertStore persists monitoring alerts in PostgreSQL.
type PostgresAlertStore struct {
	db *sql.DB
}

func NewPostgresAlertStore(db *sql.DB) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

func (s *PostgresAlertStore) Save(ctx context.Context, alert *models.MonitoringAlert) error {
	hits, err := json.Marshal(alert.Hits)
	if err != nil {
		return fmt.Errorf("marshal alert hit snapshots: %w", err)
	}
	kinds := make([]string, len(alert.HitKinds))
	for i, k := range alert.HitKinds {
		kinds[i] = string(k)
	}

	const q = `
		INSERT INTO monitoring_alerts (id, tenant_id, subject_id, kind, severity, previous_check_id, new_check_id, hit_count, hit_kinds, hits, status, resolved_by, resolved_at, resolution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			resolved_by = EXCLUDED.resolved_by,
			resolved_at = EXCLUDED.resolved_at,
			resolution = EXCLUDED.resolution,
			updated_at = EXCLUDED.updated_at`
	var previous any
	if alert.PreviousCheckID != nil {
		previous = uuid.UUID(*alert.PreviousCheckID)
	}
	_, err = conn(ctx, s.db).ExecContext(ctx, q,
		uuid.UUID(alert.ID), uuid.UUID(alert.TenantID), uuid.UUID(alert.SubjectID),
		string(alert.Kind), string(alert.Severity), previous, uuid.UUID(alert.NewCheckID),
		alert.HitCount, pq.Array(kinds), hits, string(alert.Status),
		alert.ResolvedBy, nullTime(alert.ResolvedAt), alert.Resolution,
		alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save monitoring alert: %w", err)
	}
	return nil
}

func (s *PostgresAlertStore) Get(ctx context.Context, alertID id.AlertID) (*models.MonitoringAlert, error) {
	const q = alertSelect + ` WHERE id = $1`
	alert, err := scanAlert(conn(ctx, s.db).QueryRowContext(ctx, q, uuid.UUID(alertID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get monitoring alert: %w", err)
	}
	return alert, nil
}

func (s *PostgresAlertStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.MonitoringAlert, error) {
	const q = alertSelect + ` WHERE subject_id = $1 ORDER BY created_at`
	rows, err := conn(ctx, s.db).QueryContext(ctx, q, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list monitoring alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.MonitoringAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitoring alert: %w", err)
		}
		out = append(out, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitoring alerts: %w", err)
	}
	return out, nil
}

const alertSelect = `
	SELECT id, tenant_id, subject_id, kind, severity, previous_check_id, new_check_id, hit_count, hit_kinds, hits, status, resolved_by, resolved_at, resolution, created_at, updated_at
	FROM monitoring_alerts`

func scanAlert(scanner rowScanner) (*models.MonitoringAlert, error) {
	var (
		alert      models.MonitoringAlert
		alertID    uuid.UUID
		tenantID   uuid.UUID
		subjectID  uuid.UUID
		kind       string
		severity   string
		previous   uuid.NullUUID
		newCheck   uuid.UUID
		kinds      []string
		hits       []byte
		status     string
		resolvedAt sql.NullTime
	)
	err := scanner.Scan(&alertID, &tenantID, &subjectID, &kind, &severity,
		&previous, &newCheck, &alert.HitCount, pq.Array(&kinds), &hits,
		&status, &alert.ResolvedBy, &resolvedAt, &alert.Resolution,
		&alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return nil, err
	}
	alert.ID = id.AlertID(alertID)
	alert.TenantID = id.TenantID(tenantID)
	alert.SubjectID = id.SubjectID(subjectID)
	alert.Kind = models.AlertKind(kind)
	alert.Severity = models.Severity(severity)
	alert.NewCheckID = id.CheckID(newCheck)
	alert.Status = models.AlertStatus(status)
	if previous.Valid {
		pid := id.CheckID(previous.UUID)
		alert.PreviousCheckID = &pid
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	alert.HitKinds = make([]screening.HitKind, len(kinds))
	for i, k := range kinds {
		alert.HitKinds[i] = screening.HitKind(k)
	}
	if len(hits) > 0 {
		if err := json.Unmarshal(hits, &alert.Hits); err != nil {
			return nil, fmt.Errorf("unmarshal alert hit snapshots: %w", err)
		}
	}
	return &alert, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
