package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingGateway struct {
	Gateway
}

func (blockingGateway) Classify(ctx context.Context, img Image) (*Classification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeoutGateway_BoundsCall(t *testing.T) {
	g := NewTimeoutGateway(blockingGateway{}, 20*time.Millisecond)

	start := time.Now()
	_, err := g.Classify(context.Background(), testImage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimeoutGateway_ZeroTimeoutReturnsInner(t *testing.T) {
	inner := blockingGateway{}
	assert.Equal(t, Gateway(inner), NewTimeoutGateway(inner, 0))
}
