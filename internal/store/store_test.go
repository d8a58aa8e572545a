package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planreview/internal/db"
	"planreview/internal/rubric"
	"planreview/internal/schemas"
	"planreview/internal/store"
	"planreview/internal/store/storetest"
)

func newTestProject(t *testing.T, s *store.Store) db.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), db.Project{
		ID:             uuid.NewString(),
		EnterpriseName: "Acme Robotics",
		ProjectName:    "Warehouse Automation",
	})
	require.NoError(t, err)
	return p
}

// scoreSet builds a full rubric-shaped score set with the given per-dimension
// scores, in rubric order.
func scoreSet(t *testing.T, perDim []float64) []schemas.DimensionScore {
	t.Helper()
	require.Len(t, perDim, len(rubric.Standard))
	out := make([]schemas.DimensionScore, 0, len(rubric.Standard))
	for i, dim := range rubric.Standard {
		d := schemas.DimensionScore{
			Dimension: dim.Name,
			Score:     perDim[i],
			MaxScore:  dim.MaxScore,
			Comments:  "test",
		}
		for _, sub := range dim.Subs {
			d.SubDimensions = append(d.SubDimensions, schemas.SubScore{
				SubDimension: sub.Name,
				Score:        sub.MaxScore * perDim[i] / dim.MaxScore,
				MaxScore:     sub.MaxScore,
			})
		}
		out = append(out, d)
	}
	return out
}

func TestCreateAndGetProject(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	created := newTestProject(t, s)
	assert.Equal(t, string(rubric.StatusProcessing), created.Status)

	got, err := s.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", got.EnterpriseName)
	assert.Nil(t, got.TotalScore)
	assert.Empty(t, got.ReviewResult)

	_, err = s.GetProject(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListProjectsFilterAndPaging(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	for _, name := range []string{"Alpha Corp", "Beta Corp", "Alphabet Ltd"} {
		_, err := s.CreateProject(ctx, db.Project{
			ID:             uuid.NewString(),
			EnterpriseName: name,
			ProjectName:    name + " Plan",
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	rows, total, err := s.ListProjects(ctx, store.ProjectFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, rows, 3)

	rows, total, err = s.ListProjects(ctx, store.ProjectFilter{Search: "Alpha", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)

	rows, total, err = s.ListProjects(ctx, store.ProjectFilter{Status: "completed", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)

	rows, total, err = s.ListProjects(ctx, store.ProjectFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, rows, 1)
}

func TestUpdateAndDeleteProject(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	desc := "updated description"
	got, err := s.UpdateProject(ctx, p.ID, schemas.UpdateProjectRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, "Acme Robotics", got.EnterpriseName)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), store.ErrNotFound)
}

func TestValidateScoreSet(t *testing.T) {
	good := scoreSet(t, []float64{25, 15, 15, 15, 8})
	require.NoError(t, store.ValidateScoreSet(good))

	short := good[:4]
	assert.Error(t, store.ValidateScoreSet(short))

	unknown := scoreSet(t, []float64{25, 15, 15, 15, 8})
	unknown[0].Dimension = "Vibes"
	assert.Error(t, store.ValidateScoreSet(unknown))

	dupe := scoreSet(t, []float64{25, 15, 15, 15, 8})
	dupe[1] = dupe[0]
	assert.Error(t, store.ValidateScoreSet(dupe))

	wrongMax := scoreSet(t, []float64{25, 15, 15, 15, 8})
	wrongMax[0].MaxScore = 50
	assert.Error(t, store.ValidateScoreSet(wrongMax))

	over := scoreSet(t, []float64{25, 15, 15, 15, 8})
	over[0].Score = over[0].MaxScore + 1
	assert.Error(t, store.ValidateScoreSet(over))

	negSub := scoreSet(t, []float64{25, 15, 15, 15, 8})
	negSub[2].SubDimensions[0].Score = -1
	assert.Error(t, store.ValidateScoreSet(negSub))
}

func TestGetScoresZeroScaffold(t *testing.T) {
	s := storetest.New(t)
	p := newTestProject(t, s)

	dims, err := s.GetScores(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, dims, len(rubric.Standard))
	for i, d := range dims {
		assert.Equal(t, rubric.Standard[i].Name, d.Dimension)
		assert.Zero(t, d.Score)
		assert.Equal(t, rubric.Standard[i].MaxScore, d.MaxScore)
		assert.Len(t, d.SubDimensions, len(rubric.Standard[i].Subs))
	}
}

func TestReplaceScoresTwice(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	first := scoreSet(t, []float64{27, 18, 16, 15, 8}) // total 84
	require.NoError(t, s.ReplaceScores(ctx, p.ID, first, store.AuthorAI, "first run"))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TotalScore)
	assert.InDelta(t, 84, *got.TotalScore, 0.001)
	assert.Equal(t, string(rubric.StatusCompleted), got.Status)
	assert.Equal(t, string(rubric.ReviewPass), got.ReviewResult)

	time.Sleep(5 * time.Millisecond)

	second := scoreSet(t, []float64{20, 12, 12, 12, 6}) // total 62
	require.NoError(t, s.ReplaceScores(ctx, p.ID, second, store.AuthorManual, "corrected"))

	// Current set is exactly the second replacement, no leftovers.
	dims, err := s.GetScores(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, dims, len(rubric.Standard))
	sum := 0.0
	for _, d := range dims {
		sum += d.Score
		assert.NotEmpty(t, d.SubDimensions)
	}
	assert.InDelta(t, 62, sum, 0.001)

	got, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 62, *got.TotalScore, 0.001)
	assert.Equal(t, string(rubric.StatusPendingReview), got.Status)
	assert.Equal(t, string(rubric.ReviewConditional), got.ReviewResult)

	// Both replacements are on record, newest first, totals faithful to
	// what was committed at the time.
	history, err := s.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.InDelta(t, 62, history[0].TotalScore, 0.001)
	assert.Equal(t, store.AuthorManual, history[0].ModifiedBy)
	assert.InDelta(t, 84, history[1].TotalScore, 0.001)
	assert.Equal(t, store.AuthorAI, history[1].ModifiedBy)
	assert.Len(t, history[0].Dimensions, len(rubric.Standard))
}

// History is best-effort: a broken ledger must not roll back or fail the
// score replacement itself.
func TestReplaceScoresSurvivesHistoryFailure(t *testing.T) {
	s, dbx := storetest.NewDB(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	_, err := dbx.Exec(`DROP TABLE review_history`)
	require.NoError(t, err)

	set := scoreSet(t, []float64{27, 18, 16, 15, 8}) // total 84
	require.NoError(t, s.ReplaceScores(ctx, p.ID, set, store.AuthorAI, "first run"))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TotalScore)
	assert.InDelta(t, 84, *got.TotalScore, 0.001)
	assert.Equal(t, string(rubric.StatusCompleted), got.Status)

	dims, err := s.GetScores(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, dims, len(rubric.Standard))
}

func TestReplaceScoresRejectsInvalidSet(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	bad := scoreSet(t, []float64{27, 18, 16, 15, 8})
	bad[0].Score = 999
	require.Error(t, s.ReplaceScores(ctx, p.ID, bad, store.AuthorManual, ""))

	// Nothing was written.
	history, err := s.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TotalScore)
}

func TestMissingInfoDedupe(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	item := schemas.MissingInfo{
		Dimension:   "Financials",
		Description: "no cash flow statement",
	}
	id, err := s.AddMissingInfo(ctx, p.ID, item)
	require.NoError(t, err)

	_, err = s.AddMissingInfo(ctx, p.ID, item)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	// Same dimension, different description is a distinct item.
	other := item
	other.Description = "no balance sheet"
	_, err = s.AddMissingInfo(ctx, p.ID, other)
	require.NoError(t, err)

	items, err := s.ListMissingInfo(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "pending", items[0].Status)

	got, err := s.GetMissingInfo(ctx, p.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "no cash flow statement", got.Description)

	require.NoError(t, s.SetMissingInfoStatus(ctx, p.ID, id, "resolved"))
	got, err = s.GetMissingInfo(ctx, p.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "resolved", got.Status)

	require.NoError(t, s.DeleteMissingInfo(ctx, p.ID, id))
	_, err = s.GetMissingInfo(ctx, p.ID, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMissingInfo(ctx, p.ID, id), store.ErrNotFound)
	assert.ErrorIs(t, s.SetMissingInfoStatus(ctx, p.ID, id, "provided"), store.ErrNotFound)
}

func TestMarkEvaluationFailed(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	require.NoError(t, s.MarkEvaluationFailed(ctx, p.ID, "document unreadable"))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, string(rubric.StatusFailed), got.Status)

	items, err := s.ListMissingInfo(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Description, "document unreadable")
	assert.Contains(t, items[0].Description, "manual review")

	// A retry of the same failure does not duplicate the item.
	require.NoError(t, s.MarkEvaluationFailed(ctx, p.ID, "document unreadable"))
	items, err = s.ListMissingInfo(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPlanLifecycle(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	_, err := s.LatestPlan(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	older, err := s.CreatePlan(ctx, db.BusinessPlan{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		FileName:  "v1.pdf",
		FileSize:  100,
		ObjectRef: "s3://plans/v1",
	})
	require.NoError(t, err)
	assert.Equal(t, store.PlanProcessing, older.Status)

	time.Sleep(5 * time.Millisecond)
	newer, err := s.CreatePlan(ctx, db.BusinessPlan{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		FileName:  "v2.pdf",
		FileSize:  200,
		ObjectRef: "s3://plans/v2",
	})
	require.NoError(t, err)

	latest, err := s.LatestPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	require.NoError(t, s.SetPlanStatus(ctx, newer.ID, store.PlanFailed, "boom"))
	latest, err = s.LatestPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PlanFailed, latest.Status)
	assert.Equal(t, "boom", latest.ErrorMessage)
}
