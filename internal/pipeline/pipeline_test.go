package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planreview/internal/db"
	"planreview/internal/rubric"
	"planreview/internal/store"
	"planreview/internal/store/storetest"
)

type fixture struct {
	store   *store.Store
	project db.Project
	plan    db.BusinessPlan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	ctx := context.Background()
	project, err := s.CreateProject(ctx, db.Project{
		ID:             uuid.NewString(),
		EnterpriseName: "Pipeline Test Co",
		ProjectName:    "Plan Under Review",
	})
	require.NoError(t, err)
	plan, err := s.CreatePlan(ctx, db.BusinessPlan{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		FileName:  "plan.pdf",
		FileSize:  1234,
		ObjectRef: "s3://plans/test",
	})
	require.NoError(t, err)
	return &fixture{store: s, project: project, plan: plan}
}

func (f *fixture) task(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewEvaluateTask(EvaluatePayload{
		PlanID:    f.plan.ID,
		ProjectID: f.project.ID,
		ObjectRef: f.plan.ObjectRef,
	})
	require.NoError(t, err)
	return task
}

type memDocs map[string][]byte

func (m memDocs) Get(_ context.Context, ref string) ([]byte, error) {
	b, ok := m[ref]
	if !ok {
		return nil, errors.New("object not found")
	}
	return b, nil
}

type failCompleter struct{}

func (failCompleter) Complete(context.Context, string, string) (string, error) {
	return "", errors.New("service unavailable")
}

// scriptedCompleter answers each dimension's prompt with a fixed score,
// matching on the quoted dimension name the prompt carries.
type scriptedCompleter map[string]float64

func (c scriptedCompleter) Complete(_ context.Context, _ string, user string) (string, error) {
	for _, dim := range rubric.Standard {
		if !strings.Contains(user, fmt.Sprintf("%q", dim.Name)) {
			continue
		}
		score, ok := c[dim.Name]
		if !ok {
			return "", fmt.Errorf("no scripted score for %s", dim.Name)
		}
		return dimensionReplyJSON(dim, score), nil
	}
	return "", errors.New("prompt names no known dimension")
}

func dimensionReplyJSON(dim rubric.Dimension, score float64) string {
	reply := map[string]any{
		"score":        score,
		"max_score":    dim.MaxScore,
		"comments":     "scripted assessment",
		"missing_info": []any{},
	}
	subs := []map[string]any{}
	for _, s := range dim.Subs {
		subs = append(subs, map[string]any{
			"sub_dimension": s.Name,
			"score":         s.MaxScore * score / dim.MaxScore,
			"max_score":     s.MaxScore,
			"comments":      "ok",
		})
	}
	reply["sub_dimensions"] = subs
	b, _ := json.Marshal(reply)
	return string(b)
}

func TestHandleEvaluateHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := &Worker{
		Store: f.store,
		Docs:  memDocs{f.plan.ObjectRef: []byte("%PDF-1.4 not really parseable")},
		LLM: scriptedCompleter{
			"Team Capability":      27,
			"Product & Technology": 18,
			"Market Outlook":       16,
			"Business Model":       15,
			"Financials":           8,
		},
	}
	require.NoError(t, w.HandleEvaluate(ctx, f.task(t)))

	p, err := f.store.GetProject(ctx, f.project.ID)
	require.NoError(t, err)
	require.NotNil(t, p.TotalScore)
	assert.InDelta(t, 84, *p.TotalScore, 0.001)
	assert.Equal(t, string(rubric.StatusCompleted), p.Status)
	assert.Equal(t, string(rubric.ReviewPass), p.ReviewResult)

	plan, err := f.store.LatestPlan(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PlanCompleted, plan.Status)

	history, err := f.store.History(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 84, history[0].TotalScore, 0.001)
	assert.Equal(t, store.AuthorAI, history[0].ModifiedBy)
	assert.Contains(t, history[0].ModificationNotes, "84.0")

	items, err := f.store.ListMissingInfo(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// An unreachable evaluation service degrades every dimension but still
// commits a complete, classified result.
func TestHandleEvaluateDegraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := &Worker{
		Store: f.store,
		Docs:  memDocs{f.plan.ObjectRef: []byte("garbage bytes, no text layer")},
		LLM:   failCompleter{},
	}
	require.NoError(t, w.HandleEvaluate(ctx, f.task(t)))

	p, err := f.store.GetProject(ctx, f.project.ID)
	require.NoError(t, err)
	require.NotNil(t, p.TotalScore)
	assert.InDelta(t, 60, *p.TotalScore, 0.001)
	assert.Equal(t, string(rubric.StatusPendingReview), p.Status)
	assert.Equal(t, string(rubric.ReviewConditional), p.ReviewResult)

	plan, err := f.store.LatestPlan(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PlanCompleted, plan.Status)

	// One manual-review item per rubric dimension.
	items, err := f.store.ListMissingInfo(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, items, len(rubric.Standard))
}

func TestHandleEvaluateDocumentFetchFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := &Worker{
		Store: f.store,
		Docs:  memDocs{},
		LLM:   failCompleter{},
	}
	require.NoError(t, w.HandleEvaluate(ctx, f.task(t)))

	p, err := f.store.GetProject(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, string(rubric.StatusFailed), p.Status)
	assert.Nil(t, p.TotalScore)

	plan, err := f.store.LatestPlan(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PlanFailed, plan.Status)
	assert.Contains(t, plan.ErrorMessage, "reading document")

	items, err := f.store.ListMissingInfo(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Description, "manual review")

	history, err := f.store.History(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHandleEvaluateBadPayload(t *testing.T) {
	f := newFixture(t)

	w := &Worker{Store: f.store, Docs: memDocs{}, LLM: failCompleter{}}
	task := asynq.NewTask(TaskEvaluatePlan, []byte("not json"))
	require.NoError(t, w.HandleEvaluate(context.Background(), task))

	// Nothing was touched.
	p, err := f.store.GetProject(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, string(rubric.StatusProcessing), p.Status)
}
