package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/jsonfile"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestSubscriptions(t *testing.T, clock *testClock) (*Subscriptions, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subscriptions.json")
	subs, err := OpenSubscriptions(path, clock.Now)
	require.NoError(t, err)
	return subs, path
}

func TestCreateSubscription(t *testing.T) {
	clock := &testClock{t: time.Date(2026, 2, 20, 18, 45, 0, 0, time.UTC)}
	subs, _ := newTestSubscriptions(t, clock)

	sub, err := subs.Create("user_123", "100x Medium Dubia Roaches", 2)
	require.NoError(t, err)
	require.Equal(t, "SUB-0001", sub.ID)
	require.Equal(t, "2026-03-06", sub.NextShipDate)
	require.Equal(t, model.SubscriptionActive, sub.Status)
	require.Equal(t, 2, sub.FrequencyWeeks)

	second, err := subs.Create("user_456", "Frozen mice", 4)
	require.NoError(t, err)
	require.Equal(t, "SUB-0002", second.ID)
}

func TestCreateSubscriptionRejectsBadFrequency(t *testing.T) {
	subs, path := newTestSubscriptions(t, &testClock{t: time.Now()})

	for _, weeks := range []int{0, -1} {
		_, err := subs.Create("u", "crickets", weeks)
		require.ErrorIs(t, err, ErrInvalidArgument)
	}
	_, err := subs.Create("u", " ", 1)
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.Empty(t, subs.List())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestAdvanceIgnoresWallClock(t *testing.T) {
	clock := &testClock{t: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	subs, _ := newTestSubscriptions(t, clock)

	sub, err := subs.Create("u", "crickets", 3)
	require.NoError(t, err)
	require.Equal(t, "2026-01-22", sub.NextShipDate)

	// Processing happens late; the schedule must not drift.
	clock.t = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	sub, err = subs.Advance(sub.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-02-12", sub.NextShipDate)

	sub, err = subs.Advance(sub.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-03-05", sub.NextShipDate)

	_, err = subs.Advance("SUB-9999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdvanceRequiresActive(t *testing.T) {
	subs, _ := newTestSubscriptions(t, &testClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	sub, err := subs.Create("u", "crickets", 1)
	require.NoError(t, err)

	_, err = subs.SetStatus(sub.ID, model.SubscriptionPaused)
	require.NoError(t, err)

	_, err = subs.Advance(sub.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = subs.SetStatus(sub.ID, "EXPIRED")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = subs.SetStatus("SUB-9999", model.SubscriptionActive)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionIDsSurviveReopen(t *testing.T) {
	clock := &testClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	subs, path := newTestSubscriptions(t, clock)

	_, err := subs.Create("u", "a", 1)
	require.NoError(t, err)
	_, err = subs.Create("u", "b", 1)
	require.NoError(t, err)

	// Drop the first record by hand; a length-based id would now collide.
	all := subs.List()
	require.NoError(t, jsonfile.Save(path, all[1:]))

	reopened, err := OpenSubscriptions(path, clock.Now)
	require.NoError(t, err)
	sub, err := reopened.Create("u", "c", 1)
	require.NoError(t, err)
	require.Equal(t, "SUB-0003", sub.ID)
}

func TestCounterSeededFromRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscriptions.json")
	require.NoError(t, jsonfile.Save(path, []model.Subscription{
		{ID: "SUB-0001", Item: "a", FrequencyWeeks: 1, NextShipDate: "2026-01-01", Status: model.SubscriptionActive},
		{ID: "SUB-0005", Item: "b", FrequencyWeeks: 1, NextShipDate: "2026-01-01", Status: model.SubscriptionActive},
	}))
	_, err := os.Stat(CounterPath(path))
	require.True(t, os.IsNotExist(err))

	subs, err := OpenSubscriptions(path, func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	require.NoError(t, err)

	sub, err := subs.Create("u", "c", 1)
	require.NoError(t, err)
	require.Equal(t, "SUB-0006", sub.ID)

	var counter counterDoc
	ok, err := jsonfile.Load(CounterPath(path), &counter)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 6, counter.Last)
}

func TestDue(t *testing.T) {
	clock := &testClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	subs, _ := newTestSubscriptions(t, clock)

	weekly, err := subs.Create("u", "crickets", 1) // 2026-01-08
	require.NoError(t, err)
	_, err = subs.Create("u", "mice", 4) // 2026-01-29
	require.NoError(t, err)
	paused, err := subs.Create("u", "roaches", 1) // 2026-01-08
	require.NoError(t, err)
	_, err = subs.SetStatus(paused.ID, model.SubscriptionPaused)
	require.NoError(t, err)

	due := subs.Due(time.Date(2026, 1, 8, 23, 0, 0, 0, time.UTC))
	require.Len(t, due, 1)
	require.Equal(t, weekly.ID, due[0].ID)

	require.Empty(t, subs.Due(time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)))
	require.Len(t, subs.Due(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)), 2)
}

func TestCounterPath(t *testing.T) {
	require.Equal(t, "data/subscriptions.counter.json", CounterPath("data/subscriptions.json"))
	require.Equal(t, "subs.counter.json", CounterPath("subs"))
}
