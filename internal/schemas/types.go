package schemas

import "time"

// SubScore is one scored sub-dimension of a rubric dimension.
type SubScore struct {
	SubDimension string  `json:"sub_dimension"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	Comments     string  `json:"comments"`
}

// DimensionScore is the score for one rubric dimension, with its
// sub-dimension breakdown.
type DimensionScore struct {
	Dimension     string     `json:"dimension"`
	Score         float64    `json:"score"`
	MaxScore      float64    `json:"max_score"`
	Comments      string     `json:"comments"`
	SubDimensions []SubScore `json:"sub_dimensions"`
}

// MissingInfo records information the evaluation found absent from the
// document, or a note that the evaluation itself failed.
type MissingInfo struct {
	ID              string `json:"id,omitempty"`
	Dimension       string `json:"dimension"`
	InformationType string `json:"information_type"`
	Description     string `json:"description"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// EvaluationResult is the aggregator's output for one document.
type EvaluationResult struct {
	Dimensions         []DimensionScore `json:"dimensions"`
	TotalScore         float64          `json:"total_score"`
	MissingInformation []MissingInfo    `json:"missing_information"`
	Summary            string           `json:"evaluation_summary"`
}

type CreateProjectRequest struct {
	EnterpriseName string `json:"enterprise_name"`
	ProjectName    string `json:"project_name"`
	Description    string `json:"description,omitempty"`
	TeamMembers    string `json:"team_members,omitempty"`
}

type UpdateProjectRequest struct {
	EnterpriseName *string `json:"enterprise_name,omitempty"`
	ProjectName    *string `json:"project_name,omitempty"`
	Description    *string `json:"description,omitempty"`
	TeamMembers    *string `json:"team_members,omitempty"`
}

type ProjectOut struct {
	ID             string    `json:"id"`
	EnterpriseName string    `json:"enterprise_name"`
	ProjectName    string    `json:"project_name"`
	Description    string    `json:"description,omitempty"`
	TeamMembers    string    `json:"team_members,omitempty"`
	Status         string    `json:"status"`
	TotalScore     *float64  `json:"total_score"`
	ReviewResult   string    `json:"review_result,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ProjectList struct {
	Total int          `json:"total"`
	Items []ProjectOut `json:"items"`
}

type ProjectStatistics struct {
	PendingReview  int          `json:"pending_review"`
	Completed      int          `json:"completed"`
	Failed         int          `json:"failed"`
	Processing     int          `json:"processing"`
	RecentProjects []ProjectOut `json:"recent_projects"`
}

type PlanOut struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UploadTime   time.Time `json:"upload_time"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProjectScores struct {
	Dimensions []DimensionScore `json:"dimensions"`
}

// ScoreUpdateRequest is a manual full replacement of a project's scores.
type ScoreUpdateRequest struct {
	Dimensions []DimensionScore `json:"dimensions"`
	Notes      string           `json:"notes,omitempty"`
}

type HistoryEntryOut struct {
	ID                string                    `json:"id"`
	TotalScore        float64                   `json:"total_score"`
	ModifiedBy        string                    `json:"modified_by"`
	ModificationNotes string                    `json:"modification_notes"`
	CreatedAt         time.Time                 `json:"created_at"`
	Dimensions        map[string]DimensionScore `json:"dimensions"`
}

type ScoreHistoryOut struct {
	ProjectID      string            `json:"project_id"`
	ProjectName    string            `json:"project_name"`
	EnterpriseName string            `json:"enterprise_name"`
	History        []HistoryEntryOut `json:"history"`
}

type DimensionBreakdown struct {
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
}

type ScoreSummaryOut struct {
	ProjectID          string                        `json:"project_id"`
	ProjectName        string                        `json:"project_name"`
	EnterpriseName     string                        `json:"enterprise_name"`
	TotalScore         float64                       `json:"total_score"`
	TotalPossible      float64                       `json:"total_possible"`
	OverallPercentage  float64                       `json:"overall_percentage"`
	Recommendation     string                        `json:"recommendation"`
	DimensionBreakdown map[string]DimensionBreakdown `json:"dimension_breakdown"`
	LastUpdated        time.Time                     `json:"last_updated"`
}

type MissingInfoList struct {
	Items []MissingInfo `json:"items"`
}
