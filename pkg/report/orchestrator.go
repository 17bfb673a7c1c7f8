// Package report runs asynchronous seat-change report generation with
// per-project single-flight semantics.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"seatdesk/pkg/completion"
	"seatdesk/pkg/intake"
	"seatdesk/pkg/llmerrors"
	"seatdesk/pkg/logx"
	"seatdesk/pkg/metrics"
	"seatdesk/pkg/persistence"
	"seatdesk/pkg/status"
)

// PreconditionError reports a generation request against an incomplete intake.
type PreconditionError struct {
	Missing []intake.Field
}

func (e *PreconditionError) Error() string {
	return intake.DescribeMissing(e.Missing)
}

// Snapshot is the polling view of a project's generation state.
type Snapshot struct {
	ReportGeneratedAt *time.Time     `json:"report_generated_at,omitempty"`
	ProjectID         string         `json:"project_id"`
	Status            status.Status  `json:"status"`
	MissingFields     []intake.Field `json:"missing_fields,omitempty"`
	ReportLocation    string         `json:"report_location,omitempty"`
	ReportError       string         `json:"report_error,omitempty"`
	Attempt           int64          `json:"generation_attempt"`
	InFlight          bool           `json:"generation_in_flight"`
}

// Orchestrator serializes report generation per project: at most one attempt
// runs per project at a time, and duplicate requests join the running attempt
// instead of stacking new ones.
type Orchestrator struct {
	ops         *persistence.DatabaseOperations
	completions *completion.Service
	recorder    metrics.Recorder
	logger      *logx.Logger
	reportsDir  string
	timeout     time.Duration

	retryDelay time.Duration

	mu       sync.Mutex
	inflight map[string]int64 // project ID -> running attempt
	wg       sync.WaitGroup
}

// Retry pacing for transient completion failures within one attempt.
const (
	defaultRetryDelay = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
)

// NewOrchestrator creates a report orchestrator writing reports under
// reportsDir.
func NewOrchestrator(ops *persistence.DatabaseOperations, completions *completion.Service, recorder metrics.Recorder, reportsDir string, timeout time.Duration) *Orchestrator {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Orchestrator{
		ops:         ops,
		completions: completions,
		recorder:    recorder,
		logger:      logx.NewLogger("report"),
		reportsDir:  reportsDir,
		timeout:     timeout,
		retryDelay:  defaultRetryDelay,
		inflight:    make(map[string]int64),
	}
}

// Trigger starts generation without waiting for the outcome. Used by the
// chat path; errors are logged, the project status carries the result.
func (o *Orchestrator) Trigger(projectID string) {
	if _, _, err := o.Generate(projectID); err != nil {
		o.logger.Warn("Generation trigger for project %s rejected: %v", projectID, err)
	}
}

// Generate starts a generation attempt for the project.
//
// Returns the attempt number and whether this call started it. When an
// attempt is already running, the running attempt's number is returned with
// started=false; no second attempt is stacked. An incomplete intake blocks
// the attempt before the expensive report step: the project is moved to
// intervention with the missing fields recorded as the report error, and the
// caller gets a PreconditionError.
func (o *Orchestrator) Generate(projectID string) (attempt int64, started bool, err error) {
	project, err := o.ops.GetProject(projectID)
	if err != nil {
		return 0, false, err
	}
	if missing := intake.MissingFields(project.Intake); len(missing) > 0 {
		if err := o.recordBlockedAttempt(project, missing); err != nil {
			return 0, false, err
		}
		return 0, false, &PreconditionError{Missing: missing}
	}

	o.mu.Lock()
	if running, ok := o.inflight[projectID]; ok {
		o.mu.Unlock()
		o.logger.Debug("Generation already running for project %s (attempt %d)", projectID, running)
		return running, false, nil
	}

	attempt, err = o.ops.IncrementAttempt(projectID)
	if err != nil {
		o.mu.Unlock()
		return 0, false, err
	}
	o.inflight[projectID] = attempt
	o.mu.Unlock()

	// Regeneration restarts the lifecycle; a previously complete project
	// goes back to working while the new report is produced.
	if err := o.ops.UpdateStatus(projectID, status.Working, "", nil, ""); err != nil {
		o.release(projectID)
		return 0, false, err
	}

	o.logger.Info("Starting report generation for project %s (attempt %d)", projectID, attempt)
	o.wg.Add(1)
	go o.run(projectID, attempt)
	return attempt, true, nil
}

// recordBlockedAttempt marks a requested attempt that cannot run because
// required intake fields are missing. The completion service is never called.
func (o *Orchestrator) recordBlockedAttempt(project *persistence.Project, missing []intake.Field) error {
	if project.Status == status.Intervention {
		return nil
	}
	// An edited-away field leaves a complete project; route through working
	// before recording the blocked state.
	if project.Status == status.Complete {
		if err := o.ops.UpdateStatus(project.ID, status.Working, "", nil, ""); err != nil {
			return err
		}
	}
	reason := intake.DescribeMissing(missing)
	o.logger.Warn("Generation blocked for project %s: %s", project.ID, reason)
	return o.ops.UpdateStatus(project.ID, status.Intervention, "", nil, reason)
}

func (o *Orchestrator) release(projectID string) {
	o.mu.Lock()
	delete(o.inflight, projectID)
	o.mu.Unlock()
}

// run executes one generation attempt in the background.
func (o *Orchestrator) run(projectID string, attempt int64) {
	defer o.wg.Done()
	defer o.release(projectID)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	content, err := o.produceWithRetry(ctx, projectID)
	duration := time.Since(start)

	// A newer attempt supersedes this one; its result wins, ours is
	// discarded without touching the project.
	latest, getErr := o.ops.GetProject(projectID)
	if getErr != nil {
		o.logger.Error("Failed to reload project %s after generation: %v", projectID, getErr)
		return
	}
	if latest.GenerationAttempt != attempt {
		o.logger.Info("Discarding stale generation result for project %s (attempt %d, current %d)", projectID, attempt, latest.GenerationAttempt)
		o.recorder.ObserveGeneration(projectID, "stale", duration)
		return
	}

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("report generation timed out after %s", o.timeout)
		}
		o.logger.Warn("Report generation failed for project %s (attempt %d): %v", projectID, attempt, err)
		o.recorder.ObserveGeneration(projectID, "intervention", duration)
		if updateErr := o.ops.UpdateStatus(projectID, status.Intervention, "", nil, msg); updateErr != nil {
			o.logger.Error("Failed to record intervention for project %s: %v", projectID, updateErr)
		}
		return
	}

	location, err := o.writeReport(projectID, attempt, content)
	if err != nil {
		o.logger.Error("Failed to write report for project %s: %v", projectID, err)
		o.recorder.ObserveGeneration(projectID, "intervention", duration)
		if updateErr := o.ops.UpdateStatus(projectID, status.Intervention, "", nil, err.Error()); updateErr != nil {
			o.logger.Error("Failed to record intervention for project %s: %v", projectID, updateErr)
		}
		return
	}

	now := time.Now().UTC()
	if err := o.ops.UpdateStatus(projectID, status.Complete, location, &now, ""); err != nil {
		o.logger.Error("Failed to record completion for project %s: %v", projectID, err)
		o.recorder.ObserveGeneration(projectID, "intervention", duration)
		return
	}
	o.recorder.ObserveGeneration(projectID, "complete", duration)
	o.logger.Info("Report complete for project %s (attempt %d): %s", projectID, attempt, location)
}

// produceWithRetry retries transient completion failures within the
// attempt's deadline. Permanent failures surface immediately and drive the
// intervention transition; deadline expiry surfaces as the timeout.
func (o *Orchestrator) produceWithRetry(ctx context.Context, projectID string) (string, error) {
	delay := o.retryDelay
	for {
		content, err := o.produce(ctx, projectID)
		if err == nil || !llmerrors.IsTransient(err) {
			return content, err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		o.logger.Warn("Transient completion failure for project %s, retrying in %s: %v", projectID, delay, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxRetryDelay {
			delay *= 2
		}
	}
}

// produce assembles the generation inputs and calls the completion service.
func (o *Orchestrator) produce(ctx context.Context, projectID string) (string, error) {
	project, err := o.ops.GetProject(projectID)
	if err != nil {
		return "", err
	}

	msgs, err := o.ops.ListMessages(projectID)
	if err != nil {
		return "", err
	}
	history := make([]completion.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, completion.Message{
			Role:    completion.Role(m.Role),
			Content: m.Content,
		})
	}

	docs, err := o.ops.ListDocuments(projectID)
	if err != nil {
		return "", err
	}
	docNames := make([]string, 0, len(docs))
	for _, d := range docs {
		docNames = append(docNames, d.Filename)
	}

	start := time.Now()
	content, err := o.completions.ProduceReport(ctx, project.Title, project.Intake, history, docNames)
	o.recorder.ObserveCompletion(o.completions.ModelName(), "report", projectID, err == nil, time.Since(start))
	return content, err
}

// writeReport stores the report content on disk and returns its location.
func (o *Orchestrator) writeReport(projectID string, attempt int64, content string) (string, error) {
	if err := os.MkdirAll(o.reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	location := filepath.Join(o.reportsDir, fmt.Sprintf("%s-attempt-%d.md", projectID, attempt))
	if err := os.WriteFile(location, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return location, nil
}

// Status returns the polling snapshot for a project.
func (o *Orchestrator) Status(projectID string) (*Snapshot, error) {
	project, err := o.ops.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	_, inFlight := o.inflight[projectID]
	o.mu.Unlock()

	return &Snapshot{
		ProjectID:         project.ID,
		Status:            project.Status,
		MissingFields:     intake.MissingFields(project.Intake),
		ReportLocation:    project.ReportLocation,
		ReportGeneratedAt: project.ReportGeneratedAt,
		ReportError:       project.ReportError,
		Attempt:           project.GenerationAttempt,
		InFlight:          inFlight,
	}, nil
}

// ReportText reads the current report content for a complete project.
func (o *Orchestrator) ReportText(projectID string) (string, error) {
	project, err := o.ops.GetProject(projectID)
	if err != nil {
		return "", err
	}
	if project.ReportLocation == "" {
		return "", fmt.Errorf("project %s has no report", projectID)
	}
	data, err := os.ReadFile(project.ReportLocation)
	if err != nil {
		return "", fmt.Errorf("failed to read report for project %s: %w", projectID, err)
	}
	return string(data), nil
}

// Shutdown waits for in-flight generation attempts to finish or the context
// to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out with report generation in flight: %w", ctx.Err())
	}
}
