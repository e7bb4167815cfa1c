package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestRefresherTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	r := NewRefresher(10*time.Millisecond, func(context.Context) { calls.Add(1) })
	r.Start(context.Background())
	r.Start(context.Background()) // second Start is a no-op
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()

	n := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, calls.Load(), "no refresh after Stop")
}

func TestRefresherSuspendResume(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	r := NewRefresher(time.Hour, func(context.Context) { calls.Add(1) })
	r.Start(context.Background())
	defer r.Stop()

	r.Suspend()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	// Resume refreshes immediately instead of waiting for the hour.
	r.Resume()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRefresherSuspendedSkipsTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	r := NewRefresher(5*time.Millisecond, func(context.Context) { calls.Add(1) })
	r.Suspend()
	r.Start(context.Background())
	time.Sleep(40 * time.Millisecond)
	r.Stop()
	assert.Equal(t, int32(0), calls.Load())
}

func TestRefresherStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRefresher(time.Millisecond, func(context.Context) {})
	r.Start(ctx)
	cancel()
	r.Stop()
}
