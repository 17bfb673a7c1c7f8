package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ProjectMetrics represents aggregated metrics for a project.
type ProjectMetrics struct {
	ProjectID             string `json:"project_id"`
	CompletionRequests    int64  `json:"completion_requests"`
	CompletionErrors      int64  `json:"completion_errors"`
	GenerationAttempts    int64  `json:"generation_attempts"`
	GenerationCompletions int64  `json:"generation_completions"`
}

// QueryService provides methods to query aggregated metrics from Prometheus.
// Requires the service's metrics to be scraped by a Prometheus server.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a metrics query service against the given
// Prometheus server URL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// sumQuery runs an instant sum query and returns the scalar result, or zero
// when the series does not exist yet.
func (q *QueryService) sumQuery(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}

// GetProjectMetrics retrieves aggregated completion and generation counts for
// a specific project across all models and operations.
func (q *QueryService) GetProjectMetrics(ctx context.Context, projectID string) (*ProjectMetrics, error) {
	metrics := &ProjectMetrics{
		ProjectID: projectID,
	}

	var err error
	metrics.CompletionRequests, err = q.sumQuery(ctx,
		fmt.Sprintf(`sum(completion_requests_total{project_id=%q})`, projectID))
	if err != nil {
		return nil, err
	}

	metrics.CompletionErrors, err = q.sumQuery(ctx,
		fmt.Sprintf(`sum(completion_requests_total{project_id=%q, status="error"})`, projectID))
	if err != nil {
		return nil, err
	}

	metrics.GenerationAttempts, err = q.sumQuery(ctx,
		fmt.Sprintf(`sum(report_generations_total{project_id=%q})`, projectID))
	if err != nil {
		return nil, err
	}

	metrics.GenerationCompletions, err = q.sumQuery(ctx,
		fmt.Sprintf(`sum(report_generations_total{project_id=%q, outcome="complete"})`, projectID))
	if err != nil {
		return nil, err
	}

	return metrics, nil
}
