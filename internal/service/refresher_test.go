package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voyagedesk/activity-api/internal/models"
)

// gatedComputer numbers its calls and blocks the first one until the gate
// closes, so tests can interleave refreshes deterministically.
type gatedComputer struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (c *gatedComputer) Compute(context.Context, string, time.Time, time.Time) (*models.ProductivityMetrics, bool, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()
	if n == 1 && c.gate != nil {
		<-c.gate
	}
	return &models.ProductivityMetrics{ProductivityScore: n}, false, nil
}

func (c *gatedComputer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRefresherWatch_DeliversMetrics(t *testing.T) {
	computer := &gatedComputer{}
	delivered := make(chan *models.ProductivityMetrics, 4)
	r := NewRefresher(computer, time.Hour, 24*time.Hour, func(_ string, m *models.ProductivityMetrics) {
		delivered <- m
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Run(ctx)
	r.Watch("agent-1")
	defer r.Unwatch("agent-1")

	select {
	case m := <-delivered:
		assert.Equal(t, 1, m.ProductivityScore)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a refresh delivery")
	}
}

func TestRefresherTrigger_LastRequestWins(t *testing.T) {
	computer := &gatedComputer{gate: make(chan struct{})}
	delivered := make(chan *models.ProductivityMetrics, 4)
	r := NewRefresher(computer, time.Hour, 24*time.Hour, func(_ string, m *models.ProductivityMetrics) {
		delivered <- m
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Run(ctx)

	// Watch fires an immediate refresh, which blocks on the gate.
	r.Watch("agent-1")
	require.Eventually(t, func() bool { return computer.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// The second trigger supersedes the in-flight first one.
	r.Trigger("agent-1")

	select {
	case m := <-delivered:
		assert.Equal(t, 2, m.ProductivityScore)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the superseding refresh to deliver")
	}

	// Releasing the stale first computation must not deliver its result.
	close(computer.gate)
	select {
	case m := <-delivered:
		t.Fatalf("stale refresh delivered score %d", m.ProductivityScore)
	case <-time.After(200 * time.Millisecond):
	}

	r.Unwatch("agent-1")
}

func TestRefresherTrigger_IgnoresUnwatchedSubject(t *testing.T) {
	computer := &gatedComputer{}
	delivered := make(chan *models.ProductivityMetrics, 4)
	r := NewRefresher(computer, time.Hour, 24*time.Hour, func(_ string, m *models.ProductivityMetrics) {
		delivered <- m
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Run(ctx)

	r.Trigger("agent-1")

	select {
	case m := <-delivered:
		t.Fatalf("unwatched subject delivered score %d", m.ProductivityScore)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 0, computer.callCount())

	r.mu.Lock()
	_, registered := r.entries["agent-1"]
	r.mu.Unlock()
	assert.False(t, registered)
}

func TestRefresherUnwatch_StopsDeliveries(t *testing.T) {
	computer := &gatedComputer{}
	delivered := make(chan *models.ProductivityMetrics, 4)
	r := NewRefresher(computer, time.Hour, 24*time.Hour, func(_ string, m *models.ProductivityMetrics) {
		delivered <- m
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Run(ctx)
	r.Watch("agent-1")

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the initial refresh")
	}

	r.Unwatch("agent-1")
	calls := computer.callCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, computer.callCount())
}
