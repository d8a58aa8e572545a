package store

import (
	"context"
	"database/sql"
	"errors"

	"planreview/internal/db"
)

// Plan lifecycle states. The plan status tracks document processing; the
// project status tracks the review outcome.
const (
	PlanProcessing = "processing"
	PlanCompleted  = "completed"
	PlanFailed     = "failed"
)

func (s *Store) CreatePlan(ctx context.Context, p db.BusinessPlan) (db.BusinessPlan, error) {
	p.Status = PlanProcessing
	p.UploadTime = now()
	p.UpdatedAt = p.UploadTime
	_, err := s.db.ExecContext(ctx,
		`insert into business_plans(id, project_id, file_name, file_size, object_ref, status, error_message, upload_time, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.ProjectID, p.FileName, p.FileSize, p.ObjectRef, p.Status, "", p.UploadTime, p.UpdatedAt)
	return p, err
}

// LatestPlan returns the most recently uploaded plan for the project.
func (s *Store) LatestPlan(ctx context.Context, projectID string) (db.BusinessPlan, error) {
	var p db.BusinessPlan
	err := s.db.GetContext(ctx, &p,
		`select * from business_plans where project_id=$1 order by upload_time desc limit 1`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) SetPlanStatus(ctx context.Context, planID, status, errorMessage string) error {
	_, err := s.db.ExecContext(ctx,
		`update business_plans set status=$1, error_message=$2, updated_at=$3 where id=$4`,
		status, errorMessage, now(), planID)
	return err
}
