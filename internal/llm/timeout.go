package llm

import (
	"context"
	"time"
)

// TimeoutGateway wraps a Gateway and bounds every call with a timeout.
type TimeoutGateway struct {
	inner   Gateway
	timeout time.Duration
}

// NewTimeoutGateway creates a timeout-bounded gateway. A non-positive timeout
// returns inner unchanged.
func NewTimeoutGateway(inner Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		return inner
	}
	return &TimeoutGateway{inner: inner, timeout: timeout}
}

func (t *TimeoutGateway) Classify(ctx context.Context, img Image) (*Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Classify(ctx, img)
}

func (t *TimeoutGateway) AssessSeverity(ctx context.Context, img Image, condition string) (Severity, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.AssessSeverity(ctx, img, condition)
}

func (t *TimeoutGateway) GenerateRemedies(ctx context.Context, condition string) (*RemedyBundle, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.GenerateRemedies(ctx, condition)
}

func (t *TimeoutGateway) AnalyzeIngredients(ctx context.Context, img Image) (*IngredientReport, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.AnalyzeIngredients(ctx, img)
}

func (t *TimeoutGateway) CheckSuitability(ctx context.Context, condition string, img Image) (*SuitabilityReport, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.CheckSuitability(ctx, condition, img)
}

func (t *TimeoutGateway) FollowUp(ctx context.Context, req FollowUpRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.FollowUp(ctx, req)
}
