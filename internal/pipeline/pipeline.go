// Package pipeline is the deferred unit of work behind an upload or
// reprocess request: fetch the stored document, extract its text, run the
// rubric evaluation, and commit the resulting score set. The triggering
// request has long since returned; failures here are only observable
// through subsequent status and history reads.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/hibiken/asynq"

	"planreview/internal/evaluate"
	"planreview/internal/extract"
	"planreview/internal/store"
)

// TaskEvaluatePlan is the asynq task type for one evaluation run.
const TaskEvaluatePlan = "plan:evaluate"

type EvaluatePayload struct {
	PlanID    string `json:"plan_id"`
	ProjectID string `json:"project_id"`
	ObjectRef string `json:"object_ref"`
}

// NewEvaluateTask builds the task for a plan. MaxRetry is zero: the handler
// always terminates the subject in a final state itself, so broker retries
// would only re-race the score replacement.
func NewEvaluateTask(p EvaluatePayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEvaluatePlan, b, asynq.MaxRetry(0)), nil
}

// ObjectGetter is the slice of the document store the worker needs.
type ObjectGetter interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

type Worker struct {
	Store *store.Store
	Docs  ObjectGetter
	LLM   evaluate.Completer
}

// HandleEvaluate runs one evaluation to completion. It always returns nil:
// every failure is written to the subject as a terminal outcome (forced
// failed status plus an explanatory missing-information item), never
// bubbled back to asynq.
func (w *Worker) HandleEvaluate(ctx context.Context, t *asynq.Task) error {
	log := clog.FromContext(ctx)

	var p EvaluatePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		log.Errorf("undecodable evaluate payload: %v", err)
		return nil
	}
	log.Infof("starting evaluation for plan %s (project %s)", p.PlanID, p.ProjectID)

	raw, err := w.Docs.Get(ctx, p.ObjectRef)
	if err != nil {
		w.fail(ctx, p, fmt.Sprintf("reading document %s: %v", p.ObjectRef, err))
		return nil
	}

	// Extraction never fails; unusable documents yield fallback text, which
	// the evaluation consumes like any other.
	text := extract.Extract(raw)

	result := evaluate.Run(ctx, w.LLM, text)

	note := fmt.Sprintf("AI automatic evaluation (total: %.1f/100)", result.TotalScore)
	if err := w.Store.ReplaceScores(ctx, p.ProjectID, result.Dimensions, store.AuthorAI, note); err != nil {
		w.fail(ctx, p, fmt.Sprintf("committing scores: %v", err))
		return nil
	}
	w.Store.AddMissingInfoItems(ctx, p.ProjectID, result.MissingInformation)

	if err := w.Store.SetPlanStatus(ctx, p.PlanID, store.PlanCompleted, ""); err != nil {
		log.Warnf("marking plan %s completed: %v", p.PlanID, err)
	}
	log.Infof("evaluation finished for plan %s: total %.1f", p.PlanID, result.TotalScore)
	return nil
}

func (w *Worker) fail(ctx context.Context, p EvaluatePayload, reason string) {
	log := clog.FromContext(ctx)
	log.Errorf("evaluation failed for plan %s: %s", p.PlanID, reason)

	if err := w.Store.MarkEvaluationFailed(ctx, p.ProjectID, reason); err != nil {
		log.Errorf("recording evaluation failure for project %s: %v", p.ProjectID, err)
	}
	if err := w.Store.SetPlanStatus(ctx, p.PlanID, store.PlanFailed, reason); err != nil {
		log.Warnf("marking plan %s failed: %v", p.PlanID, err)
	}
}

// Run starts the asynq server and blocks.
func Run(redisAddr string, concurrency int, w *Worker) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: concurrency})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskEvaluatePlan, w.HandleEvaluate)
	return srv.Run(mux)
}
