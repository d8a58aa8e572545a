package evaluate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planreview/internal/rubric"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func teamDim(t *testing.T) rubric.Dimension {
	t.Helper()
	d, ok := rubric.Find("Team Capability")
	require.True(t, ok)
	return d
}

func goodReply(dim rubric.Dimension, score float64) string {
	var subs []string
	for _, s := range dim.Subs {
		subs = append(subs, fmt.Sprintf(
			`{"sub_dimension": %q, "score": %.1f, "max_score": %.1f, "comments": "fine"}`,
			s.Name, s.MaxScore*score/dim.MaxScore, s.MaxScore))
	}
	return fmt.Sprintf(
		`{"score": %.1f, "max_score": %.1f, "comments": "solid", "sub_dimensions": [%s], "missing_info": []}`,
		score, dim.MaxScore, strings.Join(subs, ","))
}

func TestEvaluateDimensionHappyPath(t *testing.T) {
	dim := teamDim(t)
	c := &fakeCompleter{reply: goodReply(dim, 24)}

	score, missing := EvaluateDimension(context.Background(), c, dim, "plenty of document text")

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, "Team Capability", score.Dimension)
	assert.Equal(t, 24.0, score.Score)
	assert.Equal(t, 30.0, score.MaxScore)
	assert.Len(t, score.SubDimensions, 3)
	assert.Empty(t, missing)
}

func TestEvaluateDimensionFencedReply(t *testing.T) {
	dim := teamDim(t)
	c := &fakeCompleter{reply: "```json\n" + goodReply(dim, 21) + "\n```"}

	score, _ := EvaluateDimension(context.Background(), c, dim, "text")
	assert.Equal(t, 21.0, score.Score)
}

func TestEvaluateDimensionServiceFailure(t *testing.T) {
	dim := teamDim(t)
	c := &fakeCompleter{err: errors.New("quota exceeded")}

	score, missing := EvaluateDimension(context.Background(), c, dim, "text")

	assert.Equal(t, 1, c.calls, "a single attempt, no retries")
	assert.Equal(t, 0.6*dim.MaxScore, score.Score)
	require.Len(t, score.SubDimensions, len(dim.Subs))
	for i, sub := range score.SubDimensions {
		assert.Equal(t, 0.6*dim.Subs[i].MaxScore, sub.Score)
	}
	assert.Contains(t, score.Comments, "manual review")

	require.Len(t, missing, 1)
	assert.Equal(t, "AI evaluation failed", missing[0].InformationType)
	assert.Equal(t, "pending", missing[0].Status)
}

func TestEvaluateDimensionMalformedReply(t *testing.T) {
	dim := teamDim(t)
	for name, reply := range map[string]string{
		"not json":      "the team looks great, 25 points",
		"empty fence":   "```json\n```",
		"score too big": `{"score": 99, "max_score": 30, "comments": "", "sub_dimensions": [{"sub_dimension": "x", "score": 1, "max_score": 10, "comments": ""}]}`,
		"negative":      `{"score": -1, "max_score": 30, "comments": "", "sub_dimensions": [{"sub_dimension": "x", "score": 1, "max_score": 10, "comments": ""}]}`,
		"no subs":       `{"score": 20, "max_score": 30, "comments": "", "sub_dimensions": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := &fakeCompleter{reply: reply}
			score, missing := EvaluateDimension(context.Background(), c, dim, "text")
			assert.Equal(t, 0.6*dim.MaxScore, score.Score, "malformed replies take the same fallback as transport failures")
			assert.Len(t, missing, 1)
		})
	}
}

// A reply may misreport a sub-dimension max_score; the bound and the stored
// max must come from the rubric so a single bad reply can never produce a
// set that fails commit-time validation.
func TestEvaluateDimensionSubBoundsFromRubric(t *testing.T) {
	dim, ok := rubric.Find("Financials")
	require.True(t, ok)

	reply := `{"score": 8, "max_score": 10, "comments": "", "sub_dimensions": [
		{"sub_dimension": "Financial Position", "score": 4, "max_score": 0, "comments": ""},
		{"sub_dimension": "Funding Requirements", "score": 4, "max_score": 5, "comments": ""}
	], "missing_info": []}`

	_, _, err := parseDimensionReply(dim, reply)
	assert.ErrorIs(t, err, ErrMalformedReply)

	c := &fakeCompleter{reply: reply}
	score, missing := EvaluateDimension(context.Background(), c, dim, "text")
	assert.Equal(t, 0.6*dim.MaxScore, score.Score)
	assert.Len(t, missing, 1)
	for i, sub := range score.SubDimensions {
		assert.Equal(t, dim.Subs[i].MaxScore, sub.MaxScore)
		assert.LessOrEqual(t, sub.Score, sub.MaxScore)
	}
}

// Even when the reply is accepted, stored sub maxes are the rubric's.
func TestEvaluateDimensionPinsSubMaxes(t *testing.T) {
	dim := teamDim(t)
	reply := goodReply(dim, 24)
	// Inflate every claimed max without touching the scores.
	reply = strings.ReplaceAll(reply, `"max_score": 10.0`, `"max_score": 100.0`)

	c := &fakeCompleter{reply: reply}
	score, _ := EvaluateDimension(context.Background(), c, dim, "text")
	assert.Equal(t, 24.0, score.Score)
	require.Len(t, score.SubDimensions, len(dim.Subs))
	for i, sub := range score.SubDimensions {
		assert.Equal(t, dim.Subs[i].MaxScore, sub.MaxScore)
	}
}

func TestParseDimensionReplyNamedError(t *testing.T) {
	dim := teamDim(t)
	_, _, err := parseDimensionReply(dim, "not json")
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}

func TestDimensionPromptBoundsExcerpt(t *testing.T) {
	dim := teamDim(t)
	long := strings.Repeat("言", 10000)
	prompt := dimensionPrompt(dim, long)
	assert.Less(t, strings.Count(prompt, "言"), 3001)
	assert.Contains(t, prompt, "Core Team Background")
}
