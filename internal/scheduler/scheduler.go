package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler runs a callback once after a delay unless it is cancelled first.
type Scheduler interface {
	ScheduleAfter(d time.Duration, fn func()) Handle
	Cancel(h Handle)
}

// TimerScheduler backs Scheduler with time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[Handle]*time.Timer)}
}

func (that *TimerScheduler) ScheduleAfter(d time.Duration, fn func()) Handle {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.next++
	h := that.next

	that.timers[h] = time.AfterFunc(d, func() {
		that.mu.Lock()
		_, pending := that.timers[h]
		delete(that.timers, h)
		that.mu.Unlock()

		if pending {
			fn()
		}
	})

	return h
}

func (that *TimerScheduler) Cancel(h Handle) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[h]; ok {
		timer.Stop()
		delete(that.timers, h)
	}
}

// Pending returns the number of callbacks that have not fired yet.
func (that *TimerScheduler) Pending() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.timers)
}

// Manual is a Scheduler driven by Advance, for deterministic tests.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	next  Handle
	tasks map[Handle]manualTask
}

type manualTask struct {
	at time.Duration
	fn func()
}

func NewManual() *Manual {
	return &Manual{tasks: make(map[Handle]manualTask)}
}

func (that *Manual) ScheduleAfter(d time.Duration, fn func()) Handle {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.next++
	that.tasks[that.next] = manualTask{at: that.now + d, fn: fn}

	return that.next
}

func (that *Manual) Cancel(h Handle) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.tasks, h)
}

// Advance moves the clock forward and runs every callback that came due, in
// due order, outside the lock.
func (that *Manual) Advance(d time.Duration) {
	that.mu.Lock()
	that.now += d

	due := make([]Handle, 0, len(that.tasks))
	for h, task := range that.tasks {
		if task.at <= that.now {
			due = append(due, h)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := that.tasks[due[i]], that.tasks[due[j]]
		if a.at != b.at {
			return a.at < b.at
		}
		return due[i] < due[j]
	})

	fns := make([]func(), 0, len(due))
	for _, h := range due {
		fns = append(fns, that.tasks[h].fn)
		delete(that.tasks, h)
	}
	that.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (that *Manual) Pending() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.tasks)
}
