package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"planreview/internal/db"
	"planreview/internal/rubric"
	"planreview/internal/schemas"
)

var missingStatuses = map[string]bool{
	"pending":  true,
	"provided": true,
	"resolved": true,
}

// ValidMissingStatus reports whether s is a legal missing-information status.
func ValidMissingStatus(s string) bool { return missingStatuses[s] }

// AddMissingInfo inserts one missing-information item. An item with the same
// (project, dimension, description) already on record is rejected with
// ErrDuplicate, not merged.
func (s *Store) AddMissingInfo(ctx context.Context, projectID string, item schemas.MissingInfo) (string, error) {
	var cnt int
	if err := s.db.GetContext(ctx, &cnt,
		`select count(1) from missing_information where project_id=$1 and dimension=$2 and description=$3`,
		projectID, item.Dimension, item.Description); err != nil {
		return "", err
	}
	if cnt > 0 {
		return "", ErrDuplicate
	}

	id := uuid.NewString()
	status := item.Status
	if status == "" {
		status = "pending"
	}
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`insert into missing_information(id, project_id, dimension, information_type, description, status, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, projectID, item.Dimension, item.InformationType, item.Description, status, ts, ts)
	return id, err
}

// AddMissingInfoItems bulk-inserts evaluation output, skipping duplicates
// (a reprocess naturally reproduces the same findings).
func (s *Store) AddMissingInfoItems(ctx context.Context, projectID string, items []schemas.MissingInfo) {
	log := clog.FromContext(ctx)
	for _, item := range items {
		if _, err := s.AddMissingInfo(ctx, projectID, item); err != nil && !errors.Is(err, ErrDuplicate) {
			log.Warnf("storing missing-information item for %s: %v", projectID, err)
		}
	}
}

func (s *Store) ListMissingInfo(ctx context.Context, projectID string) ([]schemas.MissingInfo, error) {
	var rows []db.MissingInformation
	if err := s.db.SelectContext(ctx, &rows,
		`select * from missing_information where project_id=$1 order by created_at`, projectID); err != nil {
		return nil, err
	}
	out := make([]schemas.MissingInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, toMissingInfo(row))
	}
	return out, nil
}

func (s *Store) GetMissingInfo(ctx context.Context, projectID, infoID string) (schemas.MissingInfo, error) {
	var row db.MissingInformation
	err := s.db.GetContext(ctx, &row,
		`select * from missing_information where id=$1 and project_id=$2`, infoID, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return schemas.MissingInfo{}, ErrNotFound
	}
	if err != nil {
		return schemas.MissingInfo{}, err
	}
	return toMissingInfo(row), nil
}

func (s *Store) UpdateMissingInfo(ctx context.Context, projectID, infoID string, item schemas.MissingInfo) error {
	res, err := s.db.ExecContext(ctx,
		`update missing_information set dimension=$1, information_type=$2, description=$3, status=$4, updated_at=$5
		 where id=$6 and project_id=$7`,
		item.Dimension, item.InformationType, item.Description, item.Status, now(), infoID, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetMissingInfoStatus(ctx context.Context, projectID, infoID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update missing_information set status=$1, updated_at=$2 where id=$3 and project_id=$4`,
		status, now(), infoID, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMissingInfo(ctx context.Context, projectID, infoID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from missing_information where id=$1 and project_id=$2`, infoID, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkEvaluationFailed is the forced-failure path: when the pipeline cannot
// commit any score set, the project goes straight to failed and a
// missing-information item documents why. This bypasses score-based
// classification because there is no score to classify.
func (s *Store) MarkEvaluationFailed(ctx context.Context, projectID, reason string) error {
	if err := s.SetProjectStatus(ctx, projectID, rubric.StatusFailed); err != nil {
		return err
	}
	_, err := s.AddMissingInfo(ctx, projectID, schemas.MissingInfo{
		Dimension:       "AI Evaluation",
		InformationType: "automatic evaluation failure",
		Description:     "automatic evaluation failed: " + reason + "; manual review required",
		Status:          "pending",
	})
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func toMissingInfo(row db.MissingInformation) schemas.MissingInfo {
	return schemas.MissingInfo{
		ID:              row.ID,
		Dimension:       row.Dimension,
		InformationType: row.InformationType,
		Description:     row.Description,
		Status:          row.Status,
		CreatedAt:       row.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       row.UpdatedAt.Format(time.RFC3339),
	}
}
