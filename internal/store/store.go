// Package store owns every row the evaluation pipeline reads or writes:
// projects, uploaded plans, the current score set, missing-information
// items, and the append-only review history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"planreview/internal/db"
	"planreview/internal/rubric"
	"planreview/internal/schemas"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store struct {
	db *sqlx.DB
}

func New(dbx *sqlx.DB) *Store {
	return &Store{db: dbx}
}

func now() time.Time { return time.Now().UTC() }

// CreateProject inserts a new project in the processing state.
func (s *Store) CreateProject(ctx context.Context, p db.Project) (db.Project, error) {
	p.Status = string(rubric.StatusProcessing)
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`insert into projects(id, enterprise_name, project_name, description, team_members, status, review_result, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.EnterpriseName, p.ProjectName, p.Description, p.TeamMembers, p.Status, "", p.CreatedAt, p.UpdatedAt)
	return p, err
}

func (s *Store) GetProject(ctx context.Context, id string) (db.Project, error) {
	var p db.Project
	err := s.db.GetContext(ctx, &p, `select * from projects where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// ProjectExists is the cheap existence probe used by boundary validation.
func (s *Store) ProjectExists(ctx context.Context, id string) (bool, error) {
	var cnt int
	if err := s.db.GetContext(ctx, &cnt, `select count(1) from projects where id=$1`, id); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

type ProjectFilter struct {
	Status string
	Search string
	Offset int
	Limit  int
}

func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]db.Project, int, error) {
	where := ` where 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` and status=$1`
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
		where += fmt.Sprintf(` and (enterprise_name like $%d or project_name like $%d)`, len(args)-1, len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `select count(1) from projects`+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`select * from projects%s order by created_at desc limit $%d offset $%d`,
		where, len(args)-1, len(args))
	var rows []db.Project
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, req schemas.UpdateProjectRequest) (db.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return p, err
	}
	if req.EnterpriseName != nil {
		p.EnterpriseName = *req.EnterpriseName
	}
	if req.ProjectName != nil {
		p.ProjectName = *req.ProjectName
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.TeamMembers != nil {
		p.TeamMembers = *req.TeamMembers
	}
	p.UpdatedAt = now()
	_, err = s.db.ExecContext(ctx,
		`update projects set enterprise_name=$1, project_name=$2, description=$3, team_members=$4, updated_at=$5 where id=$6`,
		p.EnterpriseName, p.ProjectName, p.Description, p.TeamMembers, p.UpdatedAt, id)
	return p, err
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProjectStatus writes a status directly, outside score-driven
// classification. Used when a plan starts (re)processing and by the forced
// failure path.
func (s *Store) SetProjectStatus(ctx context.Context, id string, status rubric.Status) error {
	_, err := s.db.ExecContext(ctx,
		`update projects set status=$1, updated_at=$2 where id=$3`, string(status), now(), id)
	return err
}

func (s *Store) CountProjectsByStatus(ctx context.Context, status rubric.Status) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `select count(1) from projects where status=$1`, string(status))
	return n, err
}

func (s *Store) RecentProjects(ctx context.Context, limit int) ([]db.Project, error) {
	var rows []db.Project
	err := s.db.SelectContext(ctx, &rows,
		`select * from projects order by created_at desc limit $1`, limit)
	return rows, err
}

func (s *Store) Ping() error { return s.db.Ping() }
