// Package schedule runs cancelable periodic tasks such as the unlock cooldown tick.
package schedule

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs fn every interval until the returned stop func is called.
// Stop is idempotent and may be called from inside fn.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// Cron schedules tasks on a dedicated cron runner per task
type Cron struct{}

// NewCron returns a Scheduler backed by robfig/cron
func NewCron() *Cron {
	return &Cron{}
}

// delay fires a fixed interval after the previous activation. Unlike
// cron.Every it does not round to whole seconds, so the first run comes a
// full interval after Every.
type delay time.Duration

// Next implements cron.Schedule
func (d delay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// Every starts a constant-delay schedule
func (Cron) Every(interval time.Duration, fn func()) func() {
	c := cron.New()
	c.Schedule(delay(interval), cron.FuncJob(fn))
	c.Start()

	var once sync.Once
	return func() {
		// Stop does not wait for a running job; fn may be the caller.
		once.Do(func() { c.Stop() })
	}
}

// Manual is a Scheduler driven by explicit Tick calls
type Manual struct {
	mu   sync.Mutex
	next int
	jobs map[int]func()
}

// NewManual returns an empty manual scheduler
func NewManual() *Manual {
	return &Manual{jobs: make(map[int]func())}
}

// Every registers fn; the interval is ignored
func (m *Manual) Every(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	m.jobs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.jobs, id)
	}
}

// Tick runs every registered job once
func (m *Manual) Tick() {
	m.mu.Lock()
	jobs := make([]func(), 0, len(m.jobs))
	for _, fn := range m.jobs {
		jobs = append(jobs, fn)
	}
	m.mu.Unlock()

	for _, fn := range jobs {
		fn()
	}
}

// Active returns the number of registered jobs
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
