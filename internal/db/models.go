package db

import "time"

type Project struct {
	ID             string    `db:"id"`
	EnterpriseName string    `db:"enterprise_name"`
	ProjectName    string    `db:"project_name"`
	Description    string    `db:"description"`
	TeamMembers    string    `db:"team_members"`
	Status         string    `db:"status"`
	TotalScore     *float64  `db:"total_score"`
	ReviewResult   string    `db:"review_result"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type BusinessPlan struct {
	ID           string    `db:"id"`
	ProjectID    string    `db:"project_id"`
	FileName     string    `db:"file_name"`
	FileSize     int64     `db:"file_size"`
	ObjectRef    string    `db:"object_ref"`
	Status       string    `db:"status"`
	ErrorMessage string    `db:"error_message"`
	UploadTime   time.Time `db:"upload_time"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Score struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	Dimension string    `db:"dimension"`
	Score     float64   `db:"score"`
	MaxScore  float64   `db:"max_score"`
	Comments  string    `db:"comments"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type ScoreDetail struct {
	ID           string    `db:"id"`
	ScoreID      string    `db:"score_id"`
	SubDimension string    `db:"sub_dimension"`
	Score        float64   `db:"score"`
	MaxScore     float64   `db:"max_score"`
	Comments     string    `db:"comments"`
	CreatedAt    time.Time `db:"created_at"`
}

type MissingInformation struct {
	ID              string    `db:"id"`
	ProjectID       string    `db:"project_id"`
	Dimension       string    `db:"dimension"`
	InformationType string    `db:"information_type"`
	Description     string    `db:"description"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ReviewHistory rows are append-only; nothing updates or deletes them.
type ReviewHistory struct {
	ID                string    `db:"id"`
	ProjectID         string    `db:"project_id"`
	TotalScore        float64   `db:"total_score"`
	Dimensions        string    `db:"dimensions"`
	ModifiedBy        string    `db:"modified_by"`
	ModificationNotes string    `db:"modification_notes"`
	CreatedAt         time.Time `db:"created_at"`
}
