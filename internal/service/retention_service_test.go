package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, nil
}

func (f *fakePruner) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

type fakeFileCleaner struct {
	mu      sync.Mutex
	removed [][]string
	err     error
}

func (f *fakeFileCleaner) CleanupOlderThan(time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	names := []string{"activity-data-agent-1-2025-12-01.json"}
	f.removed = append(f.removed, names)
	return names, nil
}

func TestRetentionSweep_UsesRetentionCutoff(t *testing.T) {
	pruner := &fakePruner{deleted: 7}
	cleaner := &fakeFileCleaner{}
	svc := NewRetentionService(pruner, cleaner, RetentionConfig{
		EventRetention: 48 * time.Hour,
		SweepInterval:  time.Hour,
		ExportTTL:      time.Hour,
	}, zap.NewNop())

	before := time.Now().UTC().Add(-48 * time.Hour)
	svc.Sweep(context.Background())
	after := time.Now().UTC().Add(-48 * time.Hour)

	require.Len(t, pruner.cutoffs, 1)
	cutoff := pruner.cutoffs[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))
	assert.Len(t, cleaner.removed, 1)
}

func TestRetentionSweep_FileCleanerOptional(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewRetentionService(pruner, nil, RetentionConfig{EventRetention: time.Hour}, zap.NewNop())

	svc.Sweep(context.Background())
	assert.Equal(t, 1, pruner.sweepCount())
}

func TestRetentionStartStop(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewRetentionService(pruner, nil, RetentionConfig{
		EventRetention: time.Hour,
		SweepInterval:  10 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	require.Eventually(t, func() bool { return pruner.sweepCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	svc.Stop()

	count := pruner.sweepCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, pruner.sweepCount())
}
