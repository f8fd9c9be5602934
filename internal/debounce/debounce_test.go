package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDelay = 30 * time.Millisecond

func TestTimer_BurstFiresOnce(t *testing.T) {
	timer := New()

	var mu sync.Mutex
	var fired []int
	for i := 1; i <= 5; i++ {
		i := i
		require.True(t, timer.Schedule(testDelay, func() {
			mu.Lock()
			defer mu.Unlock()
			fired = append(fired, i)
		}))
		time.Sleep(testDelay / 5)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1
	}, time.Second, 5*time.Millisecond)

	// No stragglers after the window closes.
	time.Sleep(3 * testDelay)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5}, fired)
	assert.False(t, timer.Pending())
}

func TestTimer_CancelDiscardsCallback(t *testing.T) {
	timer := New()

	var calls atomic.Int32
	timer.Schedule(testDelay, func() { calls.Add(1) })
	assert.True(t, timer.Pending())

	timer.Cancel()
	assert.False(t, timer.Pending())

	time.Sleep(3 * testDelay)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTimer_StopRejectsSchedule(t *testing.T) {
	timer := New()

	var calls atomic.Int32
	timer.Schedule(testDelay, func() { calls.Add(1) })
	timer.Stop()

	assert.False(t, timer.Schedule(testDelay, func() { calls.Add(1) }))

	time.Sleep(3 * testDelay)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTimer_RescheduleAfterFire(t *testing.T) {
	timer := New()

	var calls atomic.Int32
	timer.Schedule(testDelay, func() { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	timer.Schedule(testDelay, func() { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestValue_DeliversLastValue(t *testing.T) {
	var mu sync.Mutex
	var got []string

	v := NewValue(testDelay, func(s string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})

	v.Set("c")
	v.Set("ca")
	v.Set("cat")
	v.Set("cats")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"cats"}, got)
}

func TestValue_IndependentInstances(t *testing.T) {
	var a, b atomic.Value

	va := NewValue(testDelay, func(s string) { a.Store(s) })
	vb := NewValue(testDelay, func(s string) { b.Store(s) })

	va.Set("search")
	vb.Set("header")
	va.Cancel()

	require.Eventually(t, func() bool { return b.Load() == "header" }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testDelay)
	assert.Nil(t, a.Load())
}
