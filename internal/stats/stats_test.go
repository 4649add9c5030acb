package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/videocampaign/internal/domain"
)

type sliceSource struct {
	rs    []domain.Recipient
	calls int
	err   error
}

func (s *sliceSource) GetRecipients(_ context.Context, _ string) ([]domain.Recipient, error) {
	s.calls++
	return s.rs, s.err
}

func fixture() []domain.Recipient {
	return []domain.Recipient{
		{ID: "1", Status: domain.RecipientPending},
		{ID: "2", Status: domain.RecipientProcessing},
		{ID: "3", Status: domain.RecipientReady, GenerationCost: 0.5, ProcessingTimeMs: 1000},
		{ID: "4", Status: domain.RecipientSent, GenerationCost: 0.5, ProcessingTimeMs: 2000},
		{ID: "5", Status: domain.RecipientViewed, GenerationCost: 0.5, ProcessingTimeMs: 3000,
			ViewCount: 3, WatchDurationSeconds: 42.5},
		{ID: "6", Status: domain.RecipientFailed, ProcessingTimeMs: 900},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("camp-1", fixture())

	assert.Equal(t, 6, s.TotalRecipients)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Processing)
	assert.Equal(t, 1, s.Ready)
	assert.Equal(t, 1, s.Sent)
	assert.Equal(t, 1, s.Viewed)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 1.5, s.TotalCost, 1e-9)
	assert.InDelta(t, 0.5, s.AverageCostPerReady, 1e-9)
	assert.InDelta(t, 2000, s.AverageProcessingTimeMs, 1e-9)
	assert.Equal(t, 3, s.TotalViews)
	assert.InDelta(t, 42.5, s.TotalWatchSeconds, 1e-9)
	assert.InDelta(t, 0.5, s.ViewRate, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("camp-1", nil)
	assert.Zero(t, s.TotalRecipients)
	assert.Zero(t, s.AverageCostPerReady)
	assert.Zero(t, s.ViewRate)
}

func TestAggregator_ComputeWithoutCache(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &sliceSource{rs: fixture()}
	a := NewAggregator(src, WithClock(func() time.Time { return at }))

	s, err := a.Compute(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, at, s.ComputedAt)
	assert.NoError(t, a.Invalidate(context.Background(), "camp-1"))

	_, err = a.Compute(context.Background(), "")
	assert.Error(t, err)

	src.err = errors.New("db down")
	_, err = a.Compute(context.Background(), "camp-1")
	assert.ErrorContains(t, err, "db down")
}

func TestAggregator_CachesUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	src := &sliceSource{rs: fixture()}
	a := NewAggregator(src, WithCache(NewCache(client, time.Minute)))
	ctx := context.Background()

	first, err := a.Compute(ctx, "camp-1")
	require.NoError(t, err)
	second, err := a.Compute(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first.Ready, second.Ready)
	assert.True(t, mr.Exists("stats:campaign:camp-1"))

	require.NoError(t, a.Invalidate(ctx, "camp-1"))
	_, err = a.Compute(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	mr.FastForward(2 * time.Minute)
	_, err = a.Compute(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestAggregator_CacheOutageFallsBackToSource(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	src := &sliceSource{rs: fixture()}
	a := NewAggregator(src, WithCache(NewCache(client, time.Minute)))

	s, err := a.Compute(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 6, s.TotalRecipients)
}

func TestCache_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, mr.Set("stats:campaign:camp-1", "{not json"))

	_, err := NewCache(client, 0).Get(context.Background(), "camp-1")
	assert.ErrorContains(t, err, "decode cached stats")
}
