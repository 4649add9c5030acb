package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/videocampaign/internal/domain"
	"github.com/ignite/videocampaign/internal/pkg/distlock"
)

type countingInvalidator struct {
	mu   sync.Mutex
	seen []string
}

func (c *countingInvalidator) Invalidate(_ context.Context, campaignID string) error {
	c.mu.Lock()
	c.seen = append(c.seen, campaignID)
	c.mu.Unlock()
	return nil
}

func waitDone(t *testing.T, m *Manager, campaignID string) RunStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	st, err := m.Wait(ctx, campaignID)
	require.NoError(t, err)
	return st
}

func TestManager_StartRunsToCompletion(t *testing.T) {
	svc, rs := seed(t, 3)
	inv := &countingInvalidator{}
	m := NewManager(&fakeEngine{}, svc, WithInvalidator(inv))
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	st, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	require.NoError(t, err)
	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, 3, st.Progress.Total)

	final := waitDone(t, m, "camp-1")
	assert.Equal(t, RunCompleted, final.State)
	assert.Equal(t, 3, final.Progress.Completed)
	assert.Len(t, final.Results, 3)
	assert.NotNil(t, final.FinishedAt)
	assert.Equal(t, []string{"camp-1"}, inv.seen)

	got, ok := m.Status("camp-1")
	require.True(t, ok)
	assert.Equal(t, final.RunID, got.RunID)
}

func TestManager_ValidatesOptions(t *testing.T) {
	svc, _ := seed(t, 1)
	m := NewManager(&fakeEngine{}, svc)

	_, err := m.Start(context.Background(), Options{Tier: domain.TierBasic})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = m.Start(context.Background(), Options{CampaignID: "camp-1", Tier: "premium"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = m.Retry(context.Background(), RetryOptions{CampaignID: "camp-1"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestManager_BusyCampaignAndStop(t *testing.T) {
	svc, rs := seed(t, 4)
	release := make(chan struct{})
	eng := &fakeEngine{before: func(domain.Recipient) { <-release }}
	m := NewManager(eng, svc)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	_, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	require.NoError(t, err)

	_, err = m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	assert.ErrorIs(t, err, ErrCampaignBusy)

	require.NoError(t, m.Stop("camp-1"))
	close(release)

	final := waitDone(t, m, "camp-1")
	assert.Equal(t, RunStopped, final.State)
	assert.Less(t, len(final.Results), len(rs))

	assert.ErrorIs(t, m.Stop("camp-1"), ErrNoRun)
	assert.ErrorIs(t, m.Pause("camp-2"), ErrNoRun)
}

func TestManager_PauseReflectedInStatus(t *testing.T) {
	svc, rs := seed(t, 3)
	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	eng := &fakeEngine{before: func(domain.Recipient) {
		once.Do(func() {
			close(entered)
			<-gate
		})
	}}
	m := NewManager(eng, svc)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	_, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	require.NoError(t, err)
	<-entered
	require.NoError(t, m.Pause("camp-1"))

	st, _ := m.Status("camp-1")
	assert.Equal(t, RunPaused, st.State)

	close(gate)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, eng.callCount())

	require.NoError(t, m.Resume("camp-1"))
	final := waitDone(t, m, "camp-1")
	assert.Equal(t, RunCompleted, final.State)
	assert.Equal(t, 3, eng.callCount())
}

func TestManager_RedisLockBlocksOtherInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// another instance already holds the campaign
	other := distlock.NewRedisLock(client, "batch:campaign:camp-1", time.Minute)
	ok, err := other.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	svc, rs := seed(t, 2)
	m := NewManager(&fakeEngine{}, svc, WithRedis(client), WithLockTTL(time.Minute))
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	_, err = m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	assert.ErrorIs(t, err, ErrCampaignBusy)

	require.NoError(t, other.Release(context.Background()))
	_, err = m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	require.NoError(t, err)
	waitDone(t, m, "camp-1")

	assert.False(t, mr.Exists("lock:batch:campaign:camp-1"), "lock must be released after the run")
}

func TestManager_RetryOnlyTouchesFailed(t *testing.T) {
	svc, rs := seed(t, 3)
	eng := &fakeEngine{failFor: map[string]bool{"user0@acme.com": true}}
	m := NewManager(eng, svc)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	_, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	require.NoError(t, err)
	waitDone(t, m, "camp-1")

	eng.mu.Lock()
	eng.failFor = nil
	eng.mu.Unlock()

	st, err := m.Retry(context.Background(), RetryOptions{CampaignID: "camp-1", Tier: domain.TierBasic})
	require.NoError(t, err)
	assert.True(t, st.Retry)

	final := waitDone(t, m, "camp-1")
	assert.Equal(t, RunCompleted, final.State)
	require.Len(t, final.Results, 1)
	assert.Equal(t, rs[0].ID, final.Results[0].RecipientID)
	assert.True(t, final.Results[0].Success)
}

func TestManager_ShutdownStopsRuns(t *testing.T) {
	svc, rs := seed(t, 5)
	started := make(chan struct{})
	var once sync.Once
	eng := &fakeEngine{before: func(domain.Recipient) {
		once.Do(func() { close(started) })
		time.Sleep(5 * time.Millisecond)
	}}
	m := NewManager(eng, svc)

	_, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	st, _ := m.Status("camp-1")
	assert.Equal(t, RunStopped, st.State)
}

func TestManager_ShutdownLetsInFlightRecipientFinish(t *testing.T) {
	svc, rs := seed(t, 3)
	entered := make(chan struct{})
	var once sync.Once
	eng := &fakeEngine{before: func(domain.Recipient) {
		once.Do(func() { close(entered) })
		time.Sleep(100 * time.Millisecond)
	}}
	m := NewManager(eng, svc)

	_, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierSmart})
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	st, _ := m.Status("camp-1")
	assert.Equal(t, RunStopped, st.State)
	require.Len(t, st.Results, 1)
	assert.True(t, st.Results[0].Success)
	assert.Equal(t, 0.5, st.Results[0].Cost)

	eng.mu.Lock()
	assert.Equal(t, []error{nil}, eng.ctxErrs)
	eng.mu.Unlock()
	assert.Equal(t, domain.RecipientReady, statusOf(t, svc, rs[0].ID).Status)
	assert.Equal(t, domain.RecipientPending, statusOf(t, svc, rs[1].ID).Status)
}

// gatedLock blocks Acquire until the test answers on grant.
type gatedLock struct {
	entered chan struct{}
	grant   chan bool
}

func (l *gatedLock) Acquire(ctx context.Context) (bool, error) {
	close(l.entered)
	select {
	case ok := <-l.grant:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (l *gatedLock) Extend(context.Context) error  { return nil }
func (l *gatedLock) Release(context.Context) error { return nil }

func TestManager_SlowLockDoesNotBlockOtherCampaigns(t *testing.T) {
	svc, rs := seed(t, 2)
	m := NewManager(&fakeEngine{}, svc)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	lk := &gatedLock{entered: make(chan struct{}), grant: make(chan bool)}
	m.newLock = func(string) distlock.DistLock { return lk }

	startErr := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
		startErr <- err
	}()
	<-lk.entered

	// manager calls return while the lock round trip is pending
	answered := make(chan struct{})
	go func() {
		m.Status("camp-2")
		_ = m.Stop("camp-2")
		close(answered)
	}()
	select {
	case <-answered:
	case <-time.After(time.Second):
		t.Fatal("manager blocked behind a pending lock acquisition")
	}

	_, err := m.Start(context.Background(), Options{CampaignID: "camp-1", Recipients: rs, Tier: domain.TierBasic})
	assert.ErrorIs(t, err, ErrCampaignBusy)

	lk.grant <- false
	assert.ErrorIs(t, <-startErr, ErrCampaignBusy)

	_, ok := m.Status("camp-1")
	assert.False(t, ok, "a run that never acquired its lock is not reported")
}
