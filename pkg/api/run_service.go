package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/logging"
	"github.com/reelflow/reelflow/pkg/metrics"
	"github.com/reelflow/reelflow/pkg/registry"
	"github.com/reelflow/reelflow/pkg/storage"
	"github.com/reelflow/reelflow/pkg/webhooks"
	"github.com/reelflow/reelflow/pkg/workflow"
)

// ProgressBroadcaster receives live progress updates for a run. Both
// the WebSocket manager and the SSE streamer satisfy this interface.
type ProgressBroadcaster interface {
	BroadcastProgress(runID string, update ProgressUpdate)
}

// ProgressUpdate is a live progress event for a running workflow
type ProgressUpdate struct {
	Type      string    `json:"type"` // "progress", "complete", "error"
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id,omitempty"`
	Percent   float64   `json:"percent"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunService starts workflow runs and records their outcomes
type RunService struct {
	registry     registry.WorkflowRegistry
	engine       *engine.Engine
	runs         storage.RunStore
	dispatcher   webhooks.WebhookDispatcher
	broadcasters []ProgressBroadcaster
	logger       logging.Logger
}

// NewRunService creates a run service
func NewRunService(
	reg registry.WorkflowRegistry,
	eng *engine.Engine,
	runs storage.RunStore,
	dispatcher webhooks.WebhookDispatcher,
	logger logging.Logger,
	broadcasters ...ProgressBroadcaster,
) *RunService {
	return &RunService{
		registry:     reg,
		engine:       eng,
		runs:         runs,
		dispatcher:   dispatcher,
		broadcasters: broadcasters,
		logger:       logger,
	}
}

// StartRun begins executing a workflow in the background and returns
// the run ID. The task string is passed to trigger nodes as the run's
// task payload.
func (s *RunService) StartRun(ctx context.Context, workflowID string, task string) (string, error) {
	var payload map[string]interface{}
	if task != "" {
		payload = map[string]interface{}{"task": task}
	}
	return s.StartRunWithOptions(ctx, workflowID, task, payload, nil)
}

// StartRunWithOptions begins executing a workflow with an explicit task
// payload and seed variables
func (s *RunService) StartRunWithOptions(ctx context.Context, workflowID string, taskLabel string, task map[string]interface{}, variables map[string]interface{}) (string, error) {
	def, err := s.registry.Get(workflowID)
	if err != nil {
		return "", err
	}

	runID := uuid.New().String()
	record := storage.RunRecord{
		ID:         runID,
		WorkflowID: workflowID,
		Status:     storage.RunStatusRunning,
		Task:       taskLabel,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.runs.SaveRun(record); err != nil {
		return "", err
	}

	s.logger.LogRunEvent(workflowID, runID, "run_started", map[string]interface{}{
		"task": taskLabel,
	})

	go s.execute(record, def, task, variables)
	return runID, nil
}

// GetRun retrieves a run record by ID
func (s *RunService) GetRun(id string) (storage.RunRecord, error) {
	return s.runs.GetRun(id)
}

// ListRuns returns runs, optionally filtered by workflow
func (s *RunService) ListRuns(workflowID string) ([]storage.RunRecord, error) {
	return s.runs.ListRuns(workflowID)
}

// DeleteRun removes a run record
func (s *RunService) DeleteRun(id string) error {
	return s.runs.DeleteRun(id)
}

// execute runs the workflow to completion and persists the outcome
func (s *RunService) execute(record storage.RunRecord, def *workflow.Definition, task map[string]interface{}, variables map[string]interface{}) {
	start := time.Now()

	result, execErr := s.engine.Execute(context.Background(), def, engine.RunOptions{
		Task:      task,
		Variables: variables,
		OnProgress: func(nodeID string, percent float64, completed, total int) {
			s.broadcast(record.ID, ProgressUpdate{
				Type:      "progress",
				RunID:     record.ID,
				NodeID:    nodeID,
				Percent:   percent,
				Completed: completed,
				Total:     total,
				Timestamp: time.Now().UTC(),
			})
			s.dispatchNodeCompleted(record, nodeID, percent)
		},
	})

	metrics.RunDuration.Observe(time.Since(start).Seconds())

	record.CompletedAt = time.Now().UTC()
	if result != nil {
		record.Results = result.Results
		record.Summary = summaryToMap(result.Summary)
		recordNodeMetrics(def, result.Results)
	}

	update := ProgressUpdate{
		Type:      "complete",
		RunID:     record.ID,
		Percent:   100,
		Timestamp: time.Now().UTC(),
	}

	if execErr != nil {
		record.Status = storage.RunStatusFailed
		record.Error = execErr.Error()
		update.Type = "error"
		update.Error = record.Error
		metrics.RunsTotal.WithLabelValues(storage.RunStatusFailed).Inc()
	} else {
		record.Status = storage.RunStatusSucceeded
		metrics.RunsTotal.WithLabelValues(storage.RunStatusSucceeded).Inc()
	}

	if err := s.runs.SaveRun(record); err != nil {
		s.logger.Error("failed to save run outcome",
			logging.Field{Key: "run_id", Value: record.ID},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}

	s.broadcast(record.ID, update)

	s.logger.LogRunEvent(record.WorkflowID, record.ID, "run_finished", map[string]interface{}{
		"status":   record.Status,
		"duration": time.Since(start).String(),
	})

	if s.dispatcher != nil {
		payload := map[string]interface{}{
			"status":  record.Status,
			"summary": record.Summary,
		}
		if record.Error != "" {
			payload["error"] = record.Error
		}
		if err := s.dispatcher.SendRunCompleted(record.WorkflowID, record.ID, payload); err != nil {
			s.logger.Warn("failed to dispatch run webhook",
				logging.Field{Key: "run_id", Value: record.ID},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}

// dispatchNodeCompleted sends node webhooks when a node reaches 100%
func (s *RunService) dispatchNodeCompleted(record storage.RunRecord, nodeID string, percent float64) {
	if s.dispatcher == nil || percent < 100 {
		return
	}
	if err := s.dispatcher.SendNodeCompleted(record.WorkflowID, record.ID, nodeID, nil); err != nil {
		s.logger.Warn("failed to dispatch node webhook",
			logging.Field{Key: "run_id", Value: record.ID},
			logging.Field{Key: "node_id", Value: nodeID},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}
}

func (s *RunService) broadcast(runID string, update ProgressUpdate) {
	for _, b := range s.broadcasters {
		b.BroadcastProgress(runID, update)
	}
}

// recordNodeMetrics counts executed nodes by kind and batch items by
// outcome
func recordNodeMetrics(def *workflow.Definition, results map[string]map[string]interface{}) {
	kinds := make(map[string]workflow.NodeKind, len(def.Nodes))
	for _, node := range def.Nodes {
		kinds[node.ID] = node.Kind
	}

	for nodeID, payload := range results {
		kind, ok := kinds[nodeID]
		if !ok {
			continue
		}
		metrics.NodeExecutionsTotal.WithLabelValues(string(kind)).Inc()

		if kind != workflow.KindBatch {
			continue
		}
		if summary, ok := payload["summary"].(workflow.BatchSummary); ok {
			metrics.BatchItemsTotal.WithLabelValues("succeeded").Add(float64(summary.Successful))
			metrics.BatchItemsTotal.WithLabelValues("failed").Add(float64(summary.Failed))
		}
	}
}

func summaryToMap(summary engine.Summary) map[string]interface{} {
	return map[string]interface{}{
		"total":  summary.Total,
		"counts": summary.Counts,
		"errors": summary.Errors,
	}
}

// IsNotFound reports whether an error is a missing workflow or run
func IsNotFound(err error) bool {
	return errors.Is(err, registry.ErrWorkflowNotFound) || errors.Is(err, storage.ErrRunNotFound)
}
