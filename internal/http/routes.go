// Package http exposes the review API. Handlers do all synchronous boundary
// validation; the evaluation itself runs out of band in the worker.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"planreview/internal/db"
	"planreview/internal/pipeline"
	"planreview/internal/rubric"
	"planreview/internal/schemas"
	"planreview/internal/store"
)

// maxPlanSize is the upload size limit for plan documents.
const maxPlanSize = 20 << 20

// Docs is the slice of the document store the API consumes.
type Docs interface {
	SavePlan(ctx context.Context, projectID string, data []byte) (ref, name string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Enqueuer schedules deferred work. Satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Server struct {
	Store    *store.Store
	Docs     Docs
	Tasks    Enqueuer
	APIToken string
}

// NewServer wires the chi router in front of s.
func NewServer(addr string, s *Server) *http.Server {
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	r.Get("/healthz", s.healthz)

	// Read paths
	r.Get("/projects", s.listProjects)
	r.Get("/projects/statistics", s.statistics)
	r.Get("/projects/{id}", s.getProject)
	r.Get("/projects/{id}/plan", s.getPlan)
	r.Get("/projects/{id}/plan/download", s.downloadPlan)
	r.Get("/projects/{id}/scores", s.getScores)
	r.Get("/projects/{id}/scores/history", s.scoreHistory)
	r.Get("/projects/{id}/scores/summary", s.scoreSummary)
	r.Get("/projects/{id}/missing-information", s.listMissingInfo)
	r.Get("/projects/{id}/missing-information/{infoID}", s.getMissingInfo)

	// Mutating paths behind the API token
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken(s.APIToken))
		r.Post("/projects", s.createProject)
		r.Put("/projects/{id}", s.updateProject)
		r.Delete("/projects/{id}", s.deleteProject)
		r.Put("/projects/{id}/team-members", s.updateTeamMembers)
		r.Post("/projects/{id}/plan", s.uploadPlan)
		r.Post("/projects/{id}/plan/reprocess", s.reprocessPlan)
		r.Put("/projects/{id}/scores", s.updateScores)
		r.Post("/projects/{id}/missing-information", s.addMissingInfo)
		r.Put("/projects/{id}/missing-information/{infoID}", s.updateMissingInfo)
		r.Patch("/projects/{id}/missing-information/{infoID}/status", s.patchMissingInfoStatus)
		r.Delete("/projects/{id}/missing-information/{infoID}", s.deleteMissingInfo)
	})

	return &http.Server{Addr: addr, Handler: r}
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// projectID validates the {id} URL parameter and confirms the project
// exists. A false return means a response was already written.
func (s *Server) projectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, 400, errResp{"invalid project ID format"})
		return "", false
	}
	ok, err := s.Store.ProjectExists(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return "", false
	}
	if !ok {
		writeJSON(w, 404, errResp{"project not found"})
		return "", false
	}
	return id, true
}

func toProjectOut(p db.Project) schemas.ProjectOut {
	return schemas.ProjectOut{
		ID:             p.ID,
		EnterpriseName: p.EnterpriseName,
		ProjectName:    p.ProjectName,
		Description:    p.Description,
		TeamMembers:    p.TeamMembers,
		Status:         p.Status,
		TotalScore:     p.TotalScore,
		ReviewResult:   p.ReviewResult,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(); err != nil {
		writeJSON(w, 500, map[string]string{"status": "db error"})
		return
	}
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.EnterpriseName == "" || req.ProjectName == "" {
		writeJSON(w, 400, errResp{"enterprise_name and project_name are required"})
		return
	}
	p, err := s.Store.CreateProject(r.Context(), db.Project{
		ID:             uuid.NewString(),
		EnterpriseName: req.EnterpriseName,
		ProjectName:    req.ProjectName,
		Description:    req.Description,
		TeamMembers:    req.TeamMembers,
	})
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, toProjectOut(p))
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("size"))
	if size < 1 || size > 1000 {
		size = 100
	}
	rows, total, err := s.Store.ListProjects(r.Context(), store.ProjectFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Offset: (page - 1) * size,
		Limit:  size,
	})
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := schemas.ProjectList{Total: total, Items: []schemas.ProjectOut{}}
	for _, p := range rows {
		out.Items = append(out.Items, toProjectOut(p))
	}
	writeJSON(w, 200, out)
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var stats schemas.ProjectStatistics
	var err error
	if stats.PendingReview, err = s.Store.CountProjectsByStatus(ctx, rubric.StatusPendingReview); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if stats.Completed, err = s.Store.CountProjectsByStatus(ctx, rubric.StatusCompleted); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if stats.Failed, err = s.Store.CountProjectsByStatus(ctx, rubric.StatusFailed); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if stats.Processing, err = s.Store.CountProjectsByStatus(ctx, rubric.StatusProcessing); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	recent, err := s.Store.RecentProjects(ctx, 10)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	stats.RecentProjects = []schemas.ProjectOut{}
	for _, p := range recent {
		stats.RecentProjects = append(stats.RecentProjects, toProjectOut(p))
	}
	writeJSON(w, 200, stats)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, 400, errResp{"invalid project ID format"})
		return
	}
	p, err := s.Store.GetProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"project not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, toProjectOut(p))
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	var req schemas.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.EnterpriseName == nil && req.ProjectName == nil && req.Description == nil && req.TeamMembers == nil {
		writeJSON(w, 400, errResp{"no valid fields to update"})
		return
	}
	p, err := s.Store.UpdateProject(r.Context(), id, req)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, toProjectOut(p))
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	if err := s.Store.DeleteProject(r.Context(), id); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"message": "project deleted"})
}

func (s *Server) updateTeamMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	var req struct {
		TeamMembers string `json:"team_members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if len(req.TeamMembers) > 1000 {
		writeJSON(w, 400, errResp{"team members text too long (max 1000 characters)"})
		return
	}
	tm := req.TeamMembers
	if _, err := s.Store.UpdateProject(r.Context(), id, schemas.UpdateProjectRequest{TeamMembers: &tm}); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"message": "team members updated", "team_members": tm})
}

func toPlanOut(p db.BusinessPlan) schemas.PlanOut {
	return schemas.PlanOut{
		ID:           p.ID,
		ProjectID:    p.ProjectID,
		FileName:     p.FileName,
		FileSize:     p.FileSize,
		Status:       p.Status,
		ErrorMessage: p.ErrorMessage,
		UploadTime:   p.UploadTime,
		UpdatedAt:    p.UpdatedAt,
	}
}

// uploadPlan accepts a PDF, persists it, and schedules the evaluation. All
// validation happens here, synchronously, before any deferred work exists;
// the response never waits on the evaluation itself.
func (s *Server) uploadPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPlanSize+1024)
	if err := r.ParseMultipartForm(maxPlanSize); err != nil {
		writeJSON(w, 400, errResp{"file too large or unreadable upload"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, 400, errResp{"missing file field"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, 400, errResp{"file name must not be empty"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeJSON(w, 400, errResp{"only PDF files are supported"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, 400, errResp{"reading upload: " + err.Error()})
		return
	}
	if len(data) == 0 {
		writeJSON(w, 400, errResp{"file is empty"})
		return
	}
	if len(data) > maxPlanSize {
		writeJSON(w, 400, errResp{"file exceeds the 20MB limit"})
		return
	}
	if !strings.HasPrefix(string(data[:min(8, len(data))]), "%PDF") {
		writeJSON(w, 400, errResp{"file is not a valid PDF"})
		return
	}

	ctx := r.Context()
	ref, name, err := s.Docs.SavePlan(ctx, id, data)
	if err != nil {
		writeJSON(w, 500, errResp{"storing document: " + err.Error()})
		return
	}

	plan, err := s.Store.CreatePlan(ctx, db.BusinessPlan{
		ID:        uuid.NewString(),
		ProjectID: id,
		FileName:  name,
		FileSize:  int64(len(data)),
		ObjectRef: ref,
	})
	if err != nil {
		_ = s.Docs.Delete(ctx, ref)
		writeJSON(w, 500, errResp{"saving plan record: " + err.Error()})
		return
	}
	if err := s.Store.SetProjectStatus(ctx, id, rubric.StatusProcessing); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}

	if err := s.enqueueEvaluation(plan.ID, id, ref); err != nil {
		writeJSON(w, 500, errResp{"scheduling evaluation: " + err.Error()})
		return
	}
	writeJSON(w, 200, toPlanOut(plan))
}

func (s *Server) enqueueEvaluation(planID, projectID, ref string) error {
	task, err := pipeline.NewEvaluateTask(pipeline.EvaluatePayload{
		PlanID:    planID,
		ProjectID: projectID,
		ObjectRef: ref,
	})
	if err != nil {
		return err
	}
	_, err = s.Tasks.Enqueue(task)
	return err
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	plan, err := s.Store.LatestPlan(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"no plan uploaded for this project"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, toPlanOut(plan))
}

func (s *Server) downloadPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	plan, err := s.Store.LatestPlan(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"no plan uploaded for this project"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	data, err := s.Docs.Get(r.Context(), plan.ObjectRef)
	if err != nil {
		writeJSON(w, 404, errResp{"plan document not found in storage"})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", plan.FileName))
	_, _ = w.Write(data)
}

func (s *Server) reprocessPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	plan, err := s.Store.LatestPlan(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"no plan uploaded for this project"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if err := s.Store.SetPlanStatus(ctx, plan.ID, store.PlanProcessing, ""); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if err := s.Store.SetProjectStatus(ctx, id, rubric.StatusProcessing); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if err := s.enqueueEvaluation(plan.ID, id, plan.ObjectRef); err != nil {
		writeJSON(w, 500, errResp{"scheduling evaluation: " + err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"message": "plan reprocessing started"})
}

func (s *Server) getScores(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	dims, err := s.Store.GetScores(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.ProjectScores{Dimensions: dims})
}

// updateScores is the manual-edit path: a full replacement of the score
// set, recorded in history with the manual author tag.
func (s *Server) updateScores(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	var req schemas.ScoreUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if err := store.ValidateScoreSet(req.Dimensions); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}

	total := 0.0
	for _, d := range req.Dimensions {
		total += d.Score
	}
	note := req.Notes
	if note == "" {
		note = fmt.Sprintf("manual score edit (new total: %.1f/100)", total)
	}
	if err := s.Store.ReplaceScores(r.Context(), id, req.Dimensions, store.AuthorManual, note); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}

	dims, err := s.Store.GetScores(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.ProjectScores{Dimensions: dims})
}

func (s *Server) scoreHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	p, err := s.Store.GetProject(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	history, err := s.Store.History(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.ScoreHistoryOut{
		ProjectID:      id,
		ProjectName:    p.ProjectName,
		EnterpriseName: p.EnterpriseName,
		History:        history,
	})
}

func (s *Server) scoreSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	p, err := s.Store.GetProject(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	dims, err := s.Store.GetScores(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}

	out := schemas.ScoreSummaryOut{
		ProjectID:          id,
		ProjectName:        p.ProjectName,
		EnterpriseName:     p.EnterpriseName,
		TotalPossible:      rubric.TotalMax(),
		DimensionBreakdown: map[string]schemas.DimensionBreakdown{},
		LastUpdated:        p.UpdatedAt,
	}
	if p.TotalScore != nil {
		out.TotalScore = *p.TotalScore
	}
	for _, d := range dims {
		pct := 0.0
		if d.MaxScore > 0 {
			pct = d.Score / d.MaxScore * 100
		}
		out.DimensionBreakdown[d.Dimension] = schemas.DimensionBreakdown{
			Score:      d.Score,
			MaxScore:   d.MaxScore,
			Percentage: pct,
		}
	}
	if out.TotalPossible > 0 {
		out.OverallPercentage = out.TotalScore / out.TotalPossible * 100
	}
	out.Recommendation = rubric.Summary(out.TotalScore)
	writeJSON(w, 200, out)
}

func (s *Server) listMissingInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	items, err := s.Store.ListMissingInfo(r.Context(), id)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.MissingInfoList{Items: items})
}

func (s *Server) addMissingInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	var item schemas.MissingInfo
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if item.Dimension == "" || item.Description == "" {
		writeJSON(w, 400, errResp{"dimension and description are required"})
		return
	}
	infoID, err := s.Store.AddMissingInfo(r.Context(), id, item)
	if errors.Is(err, store.ErrDuplicate) {
		writeJSON(w, 409, errResp{"this missing information already exists"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"message": "missing information added", "id": infoID})
}

// infoID validates the {infoID} URL parameter.
func infoID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "infoID")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, 400, errResp{"invalid ID format"})
		return "", false
	}
	return id, true
}

func (s *Server) getMissingInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	info, ok := infoID(w, r)
	if !ok {
		return
	}
	item, err := s.Store.GetMissingInfo(r.Context(), id, info)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"missing information record not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, item)
}

func (s *Server) updateMissingInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	info, ok := infoID(w, r)
	if !ok {
		return
	}
	var item schemas.MissingInfo
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if item.Status != "" && !store.ValidMissingStatus(item.Status) {
		writeJSON(w, 400, errResp{"invalid status"})
		return
	}
	err := s.Store.UpdateMissingInfo(r.Context(), id, info, item)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"missing information record not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"message": "missing information updated"})
}

func (s *Server) patchMissingInfoStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	info, ok := infoID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if !store.ValidMissingStatus(req.Status) {
		writeJSON(w, 400, errResp{"invalid status, must be one of: pending, provided, resolved"})
		return
	}
	err := s.Store.SetMissingInfoStatus(r.Context(), id, info, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"missing information record not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"message": "status updated", "status": req.Status})
}

func (s *Server) deleteMissingInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.projectID(w, r)
	if !ok {
		return
	}
	info, ok := infoID(w, r)
	if !ok {
		return
	}
	err := s.Store.DeleteMissingInfo(r.Context(), id, info)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, 404, errResp{"missing information record not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"message": "missing information removed", "deleted_id": info})
}
