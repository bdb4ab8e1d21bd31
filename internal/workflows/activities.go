package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
)

// WarmActivities holds the activity implementations for the cache warm workflow.
type WarmActivities struct {
	Geocoder *usecases.GeocoderService
}

// WarmQuery runs one query through the orchestrator so that every backend
// answer lands in the cache. It returns the number of merged features.
func (a *WarmActivities) WarmQuery(ctx context.Context, method domain.Method, q domain.GeocoderQuery) (int, error) {
	if method == domain.MethodReverse {
		return 0, temporal.NewNonRetryableApplicationError("reverse queries are never cached", "InvalidMethod", nil)
	}
	fc, err := a.Geocoder.Geocode(ctx, method, q)
	if err != nil {
		if !domain.IsBackendError(err) {
			return 0, temporal.NewNonRetryableApplicationError(err.Error(), "WarmFailed", err)
		}
		return 0, fmt.Errorf("warm %q: %w", q.Text, err)
	}
	activity.GetLogger(ctx).Debug("warmed query", "text", q.Text, "method", method, "features", len(fc.Features))
	return len(fc.Features), nil
}
