package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// CacheWarmInput is the input for the cache warm workflow.
type CacheWarmInput struct {
	Queries []domain.GeocoderQuery
	// Methods to warm per query. Defaults to autocomplete only.
	Methods []domain.Method
}

// CacheWarmResult summarises one run.
type CacheWarmResult struct {
	Warmed   int
	Failed   int
	Features int
}

// CacheWarmWorkflow pre-populates the backend cache for a list of queries.
// Queries are warmed concurrently; a query that still fails after its retries
// is counted and skipped, never failing the run.
func CacheWarmWorkflow(ctx workflow.Context, input CacheWarmInput) (CacheWarmResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting cache warm workflow", "queries", len(input.Queries))

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	methods := input.Methods
	if len(methods) == 0 {
		methods = []domain.Method{domain.MethodAutocomplete}
	}

	var futures []workflow.Future
	var texts []string
	for _, q := range input.Queries {
		if q.Text == "" {
			continue
		}
		for _, m := range methods {
			futures = append(futures, workflow.ExecuteActivity(ctx, "WarmQuery", m, q))
			texts = append(texts, q.Text)
		}
	}

	var result CacheWarmResult
	for i, f := range futures {
		var n int
		if err := f.Get(ctx, &n); err != nil {
			logger.Warn("warm query failed", "text", texts[i], "error", err)
			result.Failed++
			continue
		}
		result.Warmed++
		result.Features += n
	}

	logger.Info("Cache warm finished", "warmed", result.Warmed, "failed", result.Failed)
	return result, nil
}
