package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"planreview/internal/db"
	"planreview/internal/rubric"
	"planreview/internal/schemas"
)

// Author tags recorded on history entries.
const (
	AuthorAI     = "AI system"
	AuthorManual = "manual_edit"
)

// ValidateScoreSet checks that a score set is a legal full replacement:
// dimension names are exactly the rubric's keys with the rubric's max
// scores, no score exceeds its max, and sub-dimension scores stay within
// their own bounds.
func ValidateScoreSet(dims []schemas.DimensionScore) error {
	if len(dims) != len(rubric.Standard) {
		return fmt.Errorf("expected %d dimensions, got %d", len(rubric.Standard), len(dims))
	}
	seen := map[string]bool{}
	for _, d := range dims {
		entry, ok := rubric.Find(d.Dimension)
		if !ok {
			return fmt.Errorf("unknown dimension %q", d.Dimension)
		}
		if seen[d.Dimension] {
			return fmt.Errorf("duplicate dimension %q", d.Dimension)
		}
		seen[d.Dimension] = true
		if d.MaxScore != entry.MaxScore {
			return fmt.Errorf("dimension %q max_score %.2f does not match rubric %.2f", d.Dimension, d.MaxScore, entry.MaxScore)
		}
		if d.Score < 0 || d.Score > d.MaxScore {
			return fmt.Errorf("dimension %q score %.2f outside [0,%.2f]", d.Dimension, d.Score, d.MaxScore)
		}
		for _, sub := range d.SubDimensions {
			if sub.Score < 0 || sub.Score > sub.MaxScore {
				return fmt.Errorf("sub-dimension %q score %.2f outside [0,%.2f]", sub.SubDimension, sub.Score, sub.MaxScore)
			}
		}
	}
	return nil
}

// ReplaceScores fully replaces the project's current score set: delete every
// existing dimension row (and its sub-scores), then insert the new set, in
// that order. The sequence is intentionally plain single-row statements with
// no surrounding transaction, so a concurrent reader can observe zero or
// partial dimensions mid-replace; each call is internally ordered but calls
// for the same project are not mutually excluded. A per-project version
// token checked here would close that window if it ever matters.
//
// After the rows are in place the project's total score, status, and review
// result are derived via rubric.Classify, and exactly one history entry is
// appended. A history append failure is logged and swallowed; it never rolls
// back the replacement.
func (s *Store) ReplaceScores(ctx context.Context, projectID string, dims []schemas.DimensionScore, author, note string) error {
	if err := ValidateScoreSet(dims); err != nil {
		return err
	}

	var existing []string
	if err := s.db.SelectContext(ctx, &existing, `select id from scores where project_id=$1`, projectID); err != nil {
		return err
	}
	for _, scoreID := range existing {
		if _, err := s.db.ExecContext(ctx, `delete from score_details where score_id=$1`, scoreID); err != nil {
			return err
		}
	}
	if _, err := s.db.ExecContext(ctx, `delete from scores where project_id=$1`, projectID); err != nil {
		return err
	}

	ts := now()
	for _, d := range dims {
		scoreID := uuid.NewString()
		if _, err := s.db.ExecContext(ctx,
			`insert into scores(id, project_id, dimension, score, max_score, comments, created_at, updated_at)
			 values($1,$2,$3,$4,$5,$6,$7,$8)`,
			scoreID, projectID, d.Dimension, d.Score, d.MaxScore, d.Comments, ts, ts); err != nil {
			return fmt.Errorf("inserting score for %q: %w", d.Dimension, err)
		}
		for _, sub := range d.SubDimensions {
			if _, err := s.db.ExecContext(ctx,
				`insert into score_details(id, score_id, sub_dimension, score, max_score, comments, created_at)
				 values($1,$2,$3,$4,$5,$6,$7)`,
				uuid.NewString(), scoreID, sub.SubDimension, sub.Score, sub.MaxScore, sub.Comments, ts); err != nil {
				return fmt.Errorf("inserting sub-score for %q: %w", sub.SubDimension, err)
			}
		}
	}

	total := 0.0
	for _, d := range dims {
		total += d.Score
	}
	status, review := rubric.Classify(&total)
	if _, err := s.db.ExecContext(ctx,
		`update projects set total_score=$1, status=$2, review_result=$3, updated_at=$4 where id=$5`,
		total, string(status), string(review), ts, projectID); err != nil {
		return err
	}

	s.appendHistory(ctx, projectID, total, dims, author, note)
	return nil
}

func (s *Store) appendHistory(ctx context.Context, projectID string, total float64, dims []schemas.DimensionScore, author, note string) {
	log := clog.FromContext(ctx)

	// Denormalized snapshot keyed by dimension name.
	snapshot := make(map[string]schemas.DimensionScore, len(dims))
	for _, d := range dims {
		snapshot[d.Dimension] = d
	}
	blob, err := json.Marshal(snapshot)
	if err != nil {
		log.Warnf("skipping history append for %s: %v", projectID, err)
		return
	}

	if _, err := s.db.ExecContext(ctx,
		`insert into review_history(id, project_id, total_score, dimensions, modified_by, modification_notes, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		uuid.NewString(), projectID, total, string(blob), author, note, now()); err != nil {
		// History is best-effort; the score replacement stands regardless.
		log.Warnf("history append failed for %s: %v", projectID, err)
		return
	}
	log.Infof("recorded history for %s (total %.1f, by %s)", projectID, total, author)
}

// GetScores returns the project's current score set. When no evaluation has
// run yet it returns a zero-filled scaffold of the rubric so callers always
// see the full dimension structure.
func (s *Store) GetScores(ctx context.Context, projectID string) ([]schemas.DimensionScore, error) {
	var rows []db.Score
	if err := s.db.SelectContext(ctx, &rows,
		`select * from scores where project_id=$1 order by created_at`, projectID); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return zeroScores(), nil
	}

	out := make([]schemas.DimensionScore, 0, len(rows))
	for _, row := range rows {
		var subs []db.ScoreDetail
		if err := s.db.SelectContext(ctx, &subs,
			`select * from score_details where score_id=$1 order by created_at`, row.ID); err != nil {
			return nil, err
		}
		d := schemas.DimensionScore{
			Dimension: row.Dimension,
			Score:     row.Score,
			MaxScore:  row.MaxScore,
			Comments:  row.Comments,
		}
		for _, sub := range subs {
			d.SubDimensions = append(d.SubDimensions, schemas.SubScore{
				SubDimension: sub.SubDimension,
				Score:        sub.Score,
				MaxScore:     sub.MaxScore,
				Comments:     sub.Comments,
			})
		}
		out = append(out, d)
	}
	return out, nil
}

func zeroScores() []schemas.DimensionScore {
	out := make([]schemas.DimensionScore, 0, len(rubric.Standard))
	for _, dim := range rubric.Standard {
		d := schemas.DimensionScore{
			Dimension: dim.Name,
			MaxScore:  dim.MaxScore,
		}
		for _, sub := range dim.Subs {
			d.SubDimensions = append(d.SubDimensions, schemas.SubScore{
				SubDimension: sub.Name,
				MaxScore:     sub.MaxScore,
			})
		}
		out = append(out, d)
	}
	return out
}

// History returns every committed history entry for the project, newest
// first.
func (s *Store) History(ctx context.Context, projectID string) ([]schemas.HistoryEntryOut, error) {
	var rows []db.ReviewHistory
	if err := s.db.SelectContext(ctx, &rows,
		`select * from review_history where project_id=$1 order by created_at desc`, projectID); err != nil {
		return nil, err
	}

	out := make([]schemas.HistoryEntryOut, 0, len(rows))
	for _, row := range rows {
		entry := schemas.HistoryEntryOut{
			ID:                row.ID,
			TotalScore:        row.TotalScore,
			ModifiedBy:        row.ModifiedBy,
			ModificationNotes: row.ModificationNotes,
			CreatedAt:         row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Dimensions), &entry.Dimensions); err != nil {
			clog.FromContext(ctx).Warnf("undecodable history snapshot %s: %v", row.ID, err)
		}
		out = append(out, entry)
	}
	return out, nil
}
