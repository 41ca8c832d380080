package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskSlot_StartSupersedesRunningTask(t *testing.T) {
	slot := newTaskSlot()
	defer slot.close()

	started := make(chan struct{})
	var staleCommitted atomic.Bool
	first := slot.start(func(ctx context.Context, commit commitFunc) {
		close(started)
		<-ctx.Done()
		staleCommitted.Store(commit(func() {}))
	})
	<-started

	var applied atomic.Bool
	second := slot.start(func(_ context.Context, commit commitFunc) {
		applied.Store(commit(func() {}))
	})

	waitDone(t, first)
	waitDone(t, second)
	assert.False(t, staleCommitted.Load())
	assert.True(t, applied.Load())
}

func TestTaskSlot_NowSupersedesRunningTask(t *testing.T) {
	slot := newTaskSlot()
	defer slot.close()

	started := make(chan struct{})
	release := make(chan struct{})
	var committed atomic.Bool
	task := slot.start(func(_ context.Context, commit commitFunc) {
		close(started)
		<-release
		committed.Store(commit(func() {}))
	})
	<-started

	ran := false
	waitDone(t, slot.now(func() { ran = true }))
	assert.True(t, ran)

	close(release)
	waitDone(t, task)
	assert.False(t, committed.Load())
}

func TestTaskSlot_CloseWaitsAndRefusesNewWork(t *testing.T) {
	slot := newTaskSlot()

	var finished atomic.Bool
	slot.start(func(ctx context.Context, _ commitFunc) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})

	slot.close()
	require.True(t, finished.Load())

	ran := false
	waitDone(t, slot.start(func(context.Context, commitFunc) { ran = true }))
	waitDone(t, slot.now(func() { ran = true }))
	assert.False(t, ran)
}

func TestDebouncer_RunsLastCallOnce(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	var last atomic.Int32
	for i := int32(1); i <= 3; i++ {
		d.Call(func() {
			calls.Add(1)
			last.Store(i)
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(3), last.Load())
}

func TestDebouncer_StopDropsPendingCall(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls atomic.Int32
	d.Call(func() { calls.Add(1) })
	d.Stop()
	d.Call(func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestDebouncer_FlushRunsPendingCallOnce(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	var calls atomic.Int32
	d.Call(func() { calls.Add(1) })
	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Flush())

	short := NewDebouncer(time.Millisecond)
	defer short.Stop()
	short.Call(func() { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.False(t, short.Flush())
	assert.Equal(t, int32(2), calls.Load())
}
