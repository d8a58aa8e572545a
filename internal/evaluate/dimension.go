package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"planreview/internal/rubric"
	"planreview/internal/schemas"
)

// excerptRunes bounds how much document text a single evaluation call sees.
const excerptRunes = 3000

// fallbackRatio is the score assigned to a dimension (and each of its
// sub-dimensions) when the service call or its reply is unusable.
const fallbackRatio = 0.6

const systemPrompt = "You are a professional project review expert evaluating business plans for an incubator. " +
	"Respond strictly with a JSON object matching the requested shape and nothing else."

// ErrMalformedReply marks a service reply that did not parse or validate
// into the expected structure. It feeds the same fallback path as a
// transport failure.
var ErrMalformedReply = errors.New("malformed evaluation reply")

// dimensionReply is the structured shape the service is asked to produce.
type dimensionReply struct {
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"max_score"`
	Comments      string  `json:"comments"`
	SubDimensions []struct {
		SubDimension string  `json:"sub_dimension"`
		Score        float64 `json:"score"`
		MaxScore     float64 `json:"max_score"`
		Comments     string  `json:"comments"`
	} `json:"sub_dimensions"`
	MissingInfo []struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"missing_info"`
}

// EvaluateDimension scores one rubric dimension. A single attempt is made;
// on service failure or a malformed reply it returns the deterministic
// fallback score instead of an error. Retry policy, if any, belongs to the
// caller.
func EvaluateDimension(ctx context.Context, c Completer, dim rubric.Dimension, text string) (schemas.DimensionScore, []schemas.MissingInfo) {
	log := clog.FromContext(ctx)

	reply, err := c.Complete(ctx, systemPrompt, dimensionPrompt(dim, text))
	if err != nil {
		log.Warnf("evaluation call failed for %q: %v", dim.Name, err)
		return fallbackDimension(dim)
	}

	score, missing, err := parseDimensionReply(dim, reply)
	if err != nil {
		log.Warnf("unusable reply for %q: %v", dim.Name, err)
		return fallbackDimension(dim)
	}
	log.Infof("evaluated %q: %.1f/%.0f", dim.Name, score.Score, dim.MaxScore)
	return score, missing
}

func dimensionPrompt(dim rubric.Dimension, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the %q dimension of the business plan below, worth %.0f points in total.\n\n", dim.Name, dim.MaxScore)

	b.WriteString("Scoring criteria:\n")
	for _, s := range dim.Subs {
		fmt.Fprintf(&b, "- %s (%.0f points)\n", s.Name, s.MaxScore)
	}

	b.WriteString("\nBusiness plan content:\n")
	b.WriteString(excerpt(text, excerptRunes))

	fmt.Fprintf(&b, "\n\nReturn a JSON evaluation of this exact shape:\n{\n")
	fmt.Fprintf(&b, "  \"score\": <total points awarded>,\n")
	fmt.Fprintf(&b, "  \"max_score\": %.0f,\n", dim.MaxScore)
	fmt.Fprintf(&b, "  \"comments\": \"<assessment, 100 words or fewer>\",\n")
	b.WriteString("  \"sub_dimensions\": [\n")
	for i, s := range dim.Subs {
		sep := ","
		if i == len(dim.Subs)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    {\"sub_dimension\": %q, \"score\": <points>, \"max_score\": %.0f, \"comments\": \"<assessment>\"}%s\n", s.Name, s.MaxScore, sep)
	}
	b.WriteString("  ],\n")
	b.WriteString("  \"missing_info\": [\n")
	b.WriteString("    {\"type\": \"<category of missing information>\", \"description\": \"<what is missing>\"}\n")
	b.WriteString("  ]\n}")
	return b.String()
}

func excerpt(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

func parseDimensionReply(dim rubric.Dimension, raw string) (schemas.DimensionScore, []schemas.MissingInfo, error) {
	var reply dimensionReply
	if err := json.Unmarshal([]byte(stripFences(raw)), &reply); err != nil {
		return schemas.DimensionScore{}, nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if reply.Score < 0 || reply.Score > dim.MaxScore {
		return schemas.DimensionScore{}, nil, fmt.Errorf("%w: score %.2f outside [0,%.0f]", ErrMalformedReply, reply.Score, dim.MaxScore)
	}
	if len(reply.SubDimensions) == 0 {
		return schemas.DimensionScore{}, nil, fmt.Errorf("%w: no sub-dimension scores", ErrMalformedReply)
	}

	// Sub-dimension bounds come from the rubric, never from the reply. A
	// model is free to misreport max_score; trusting it would let an illegal
	// set through here only to be rejected at commit time.
	subMax := make(map[string]float64, len(dim.Subs))
	for _, s := range dim.Subs {
		subMax[s.Name] = s.MaxScore
	}

	score := schemas.DimensionScore{
		Dimension: dim.Name,
		Score:     reply.Score,
		MaxScore:  dim.MaxScore,
		Comments:  reply.Comments,
	}
	for _, sub := range reply.SubDimensions {
		max, ok := subMax[sub.SubDimension]
		if !ok {
			return schemas.DimensionScore{}, nil, fmt.Errorf("%w: unknown sub-dimension %q", ErrMalformedReply, sub.SubDimension)
		}
		if sub.Score < 0 || sub.Score > max {
			return schemas.DimensionScore{}, nil, fmt.Errorf("%w: sub-dimension %q score %.2f outside [0,%.2f]", ErrMalformedReply, sub.SubDimension, sub.Score, max)
		}
		score.SubDimensions = append(score.SubDimensions, schemas.SubScore{
			SubDimension: sub.SubDimension,
			Score:        sub.Score,
			MaxScore:     max,
			Comments:     sub.Comments,
		})
	}

	var missing []schemas.MissingInfo
	for _, m := range reply.MissingInfo {
		if m.Description == "" {
			continue
		}
		missing = append(missing, schemas.MissingInfo{
			Dimension:       dim.Name,
			InformationType: m.Type,
			Description:     m.Description,
			Status:          "pending",
		})
	}
	return score, missing, nil
}

// stripFences removes a markdown code-fence wrapper if the payload carries
// one. Some models insist on ```json fencing regardless of instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func fallbackDimension(dim rubric.Dimension) (schemas.DimensionScore, []schemas.MissingInfo) {
	score := schemas.DimensionScore{
		Dimension: dim.Name,
		Score:     dim.MaxScore * fallbackRatio,
		MaxScore:  dim.MaxScore,
		Comments:  fmt.Sprintf("%s could not be evaluated automatically; needs manual review", dim.Name),
	}
	for _, s := range dim.Subs {
		score.SubDimensions = append(score.SubDimensions, schemas.SubScore{
			SubDimension: s.Name,
			Score:        s.MaxScore * fallbackRatio,
			MaxScore:     s.MaxScore,
			Comments:     "pending manual review",
		})
	}
	missing := []schemas.MissingInfo{{
		Dimension:       dim.Name,
		InformationType: "AI evaluation failed",
		Description:     fmt.Sprintf("the %s dimension requires manual review", dim.Name),
		Status:          "pending",
	}}
	return score, missing
}
