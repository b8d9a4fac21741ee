package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vigil/internal/screening/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/platform/tx"
)

// PostgresStore persists screening checks and hits in PostgreSQL.
//
// SaveCheck relies on the caller's transaction (via pkg/platform/tx) for
// check-and-hits atomicity; hits cascade-delete with their check.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbtx {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) SaveCheck(ctx context.Context, check *models.ScreeningCheck) error {
	conn := s.conn(ctx)

	kinds := make([]string, len(check.Kinds))
	for i, k := range check.Kinds {
		kinds[i] = string(k)
	}

	const checkQ = `
		INSERT INTO screening_checks (id, tenant_id, subject_id, subject_name, subject_birth_date, subject_country, entity_kind, kinds, status, hit_count, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			hit_count = EXCLUDED.hit_count,
			completed_at = EXCLUDED.completed_at`
	_, err := conn.ExecContext(ctx, checkQ,
		uuid.UUID(check.ID), uuid.UUID(check.TenantID), uuid.UUID(check.SubjectID),
		check.SubjectName, nullTime(check.SubjectBirthDate), check.SubjectCountry,
		string(check.EntityKind), pq.Array(kinds), string(check.Status),
		check.HitCount, check.StartedAt, nullTime(check.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save screening check: %w", err)
	}

	const hitQ = `
		INSERT INTO screening_hits (id, check_id, entity_id, matched_name, confidence, kind, category, matched_fields, pep_tier, pep_relation, category_tags, resolution, resolved_by, resolved_at, list_source, list_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`
	for i := range check.Hits {
		h := &check.Hits[i]
		var relation sql.NullString
		if h.PEPRelation != nil {
			relation = sql.NullString{String: string(*h.PEPRelation), Valid: true}
		}
		_, err := conn.ExecContext(ctx, hitQ,
			uuid.UUID(h.ID), uuid.UUID(h.CheckID), h.EntityID, h.MatchedName,
			h.Confidence, string(h.Kind), string(h.Category), pq.Array(h.MatchedFields),
			nullInt(h.PEPTier), relation, pq.Array(h.CategoryTags),
			string(h.Resolution), h.ResolvedBy, nullTime(h.ResolvedAt),
			h.ListSource, h.ListVersion, h.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("save screening hit: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetCheck(ctx context.Context, checkID id.CheckID) (*models.ScreeningCheck, error) {
	const q = `
		SELECT id, tenant_id, subject_id, subject_name, subject_birth_date, subject_country, entity_kind, kinds, status, hit_count, started_at, completed_at
		FROM screening_checks
		WHERE id = $1`
	check, err := s.scanCheck(s.conn(ctx).QueryRowContext(ctx, q, uuid.UUID(checkID)))
	if err != nil {
		return nil, err
	}
	if err := s.attachHits(ctx, check); err != nil {
		return nil, err
	}
	return check, nil
}

func (s *PostgresStore) GetHit(ctx context.Context, hitID id.HitID) (*models.ScreeningHit, error) {
	const q = `
		SELECT id, check_id, entity_id, matched_name, confidence, kind, category, matched_fields, pep_tier, pep_relation, category_tags, resolution, resolved_by, resolved_at, list_source, list_version, created_at
		FROM screening_hits
		WHERE id = $1`
	rows, err := s.conn(ctx).QueryContext(ctx, q, uuid.UUID(hitID))
	if err != nil {
		return nil, fmt.Errorf("get screening hit: %w", err)
	}
	defer rows.Close()

	hits, err := scanHits(rows)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &hits[0], nil
}

func (s *PostgresStore) UpdateHitResolution(ctx context.Context, hit *models.ScreeningHit) error {
	const q = `
		UPDATE screening_hits
		SET resolution = $1, resolved_by = $2, resolved_at = $3
		WHERE id = $4`
	res, err := s.conn(ctx).ExecContext(ctx, q,
		string(hit.Resolution), hit.ResolvedBy, nullTime(hit.ResolvedAt), uuid.UUID(hit.ID),
	)
	if err != nil {
		return fmt.Errorf("update hit resolution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update hit resolution: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.ScreeningCheck, error) {
	const q = `
		SELECT id, tenant_id, subject_id, subject_name, subject_birth_date, subject_country, entity_kind, kinds, status, hit_count, started_at, completed_at
		FROM screening_checks
		WHERE subject_id = $1
		ORDER BY started_at`
	rows, err := s.conn(ctx).QueryContext(ctx, q, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list screening checks: %w", err)
	}
	defer rows.Close()

	var out []*models.ScreeningCheck
	for rows.Next() {
		check, err := scanCheckRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screening checks: %w", err)
	}
	for _, check := range out {
		if err := s.attachHits(ctx, check); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanCheck(row *sql.Row) (*models.ScreeningCheck, error) {
	check, err := scanCheckFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get screening check: %w", err)
	}
	return check, nil
}

func scanCheckRow(rows *sql.Rows) (*models.ScreeningCheck, error) {
	check, err := scanCheckFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("scan screening check: %w", err)
	}
	return check, nil
}

func scanCheckFrom(scanner rowScanner) (*models.ScreeningCheck, error) {
	var (
		check       models.ScreeningCheck
		checkID     uuid.UUID
		tenantID    uuid.UUID
		subjectID   uuid.UUID
		birthDate   sql.NullTime
		entityKind  string
		kinds       []string
		status      string
		completedAt sql.NullTime
	)
	err := scanner.Scan(&checkID, &tenantID, &subjectID, &check.SubjectName, &birthDate,
		&check.SubjectCountry, &entityKind, pq.Array(&kinds), &status,
		&check.HitCount, &check.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	check.ID = id.CheckID(checkID)
	check.TenantID = id.TenantID(tenantID)
	check.SubjectID = id.SubjectID(subjectID)
	check.EntityKind = models.EntityKind(entityKind)
	check.Status = models.RunStatus(status)
	if birthDate.Valid {
		check.SubjectBirthDate = &birthDate.Time
	}
	if completedAt.Valid {
		check.CompletedAt = &completedAt.Time
	}
	check.Kinds = make([]models.CheckKind, len(kinds))
	for i, k := range kinds {
		check.Kinds[i] = models.CheckKind(k)
	}
	return &check, nil
}

func (s *PostgresStore) attachHits(ctx context.Context, check *models.ScreeningCheck) error {
	const q = `
		SELECT id, check_id, entity_id, matched_name, confidence, kind, category, matched_fields, pep_tier, pep_relation, category_tags, resolution, resolved_by, resolved_at, list_source, list_version, created_at
		FROM screening_hits
		WHERE check_id = $1
		ORDER BY created_at, id`
	rows, err := s.conn(ctx).QueryContext(ctx, q, uuid.UUID(check.ID))
	if err != nil {
		return fmt.Errorf("list screening hits: %w", err)
	}
	defer rows.Close()

	hits, err := scanHits(rows)
	if err != nil {
		return err
	}
	check.Hits = hits
	return nil
}

func scanHits(rows *sql.Rows) ([]models.ScreeningHit, error) {
	var hits []models.ScreeningHit
	for rows.Next() {
		var (
			h          models.ScreeningHit
			hitID      uuid.UUID
			checkID    uuid.UUID
			kind       string
			category   string
			fields     []string
			tier       sql.NullInt64
			relation   sql.NullString
			tags       []string
			resolution string
			resolvedAt sql.NullTime
		)
		err := rows.Scan(&hitID, &checkID, &h.EntityID, &h.MatchedName, &h.Confidence,
			&kind, &category, pq.Array(&fields), &tier, &relation, pq.Array(&tags),
			&resolution, &h.ResolvedBy, &resolvedAt, &h.ListSource, &h.ListVersion, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan screening hit: %w", err)
		}
		h.ID = id.HitID(hitID)
		h.CheckID = id.CheckID(checkID)
		h.Kind = models.HitKind(kind)
		h.Category = models.MatchCategory(category)
		h.MatchedFields = fields
		h.CategoryTags = tags
		h.Resolution = models.ResolutionStatus(resolution)
		if tier.Valid {
			v := int(tier.Int64)
			h.PEPTier = &v
		}
		if relation.Valid {
			r := models.PEPRelationship(relation.String)
			h.PEPRelation = &r
		}
		if resolvedAt.Valid {
			h.ResolvedAt = &resolvedAt.Time
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screening hits: %w", err)
	}
	return hits, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
