// Package cron implements schedule.Scheduler on top of robfig/cron.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/schedule"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

const module = "CronScheduler"

// Parser accepts five-field expressions, an optional leading seconds field and descriptors such
// as @daily.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// cronLogger routes robfig/cron messages to the package logger.
type cronLogger struct{}

func (cronLogger) Printf(format string, args ...interface{}) {
	logger.Debugf("cron: "+format, args...)
}

// CronScheduler keeps jobs and triggers in maps keyed by job key. Triggers are cron entries.
type CronScheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     map[string]schedule.JobFunc
	triggers map[string]cron.EntryID

	// ctx is handed to every job and cancelled once Stop gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc
	// running tracks TriggerNow goroutines, which cron.Stop does not wait for.
	running sync.WaitGroup
}

// NewCronScheduler creates a scheduler evaluating expressions in loc.
func NewCronScheduler(loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	l := cron.PrintfLogger(cronLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		jobs:     make(map[string]schedule.JobFunc),
		triggers: make(map[string]cron.EntryID),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *CronScheduler) CheckExists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[key]
	return ok
}

func (s *CronScheduler) AddJob(key string, job schedule.JobFunc) error {
	if job == nil {
		return exception.NewTaskManagerError(module, fmt.Sprintf("job '%s' has no function", key), nil, false)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[key] = job
	return nil
}

func (s *CronScheduler) DeleteJob(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unscheduleLocked(key)
	delete(s.jobs, key)
	return nil
}

func (s *CronScheduler) UnscheduleTrigger(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unscheduleLocked(key)
	return nil
}

func (s *CronScheduler) unscheduleLocked(key string) {
	if id, ok := s.triggers[key]; ok {
		s.cron.Remove(id)
		delete(s.triggers, key)
	}
}

// ScheduleTrigger parses cronExpr before touching the existing trigger, so an invalid expression
// leaves the job as it was.
func (s *CronScheduler) ScheduleTrigger(key, cronExpr string) error {
	sched, err := Parser.Parse(cronExpr)
	if err != nil {
		return exception.NewTaskManagerErrorf(module, "cannot parse '%s': %v", cronExpr, err, schedule.ErrInvalidFrequency)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[key]; !ok {
		return exception.NewTaskManagerErrorf(module, "job '%s'", key, schedule.ErrJobNotFound)
	}
	s.unscheduleLocked(key)
	s.triggers[key] = s.cron.Schedule(sched, cron.FuncJob(func() { s.run(key) }))
	return nil
}

func (s *CronScheduler) HasTrigger(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.triggers[key]
	return ok
}

func (s *CronScheduler) TriggerNow(key string) error {
	s.mu.Lock()
	_, ok := s.jobs[key]
	s.mu.Unlock()
	if !ok {
		return exception.NewTaskManagerErrorf(module, "job '%s'", key, schedule.ErrJobNotFound)
	}
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Job '%s' panicked: %v", key, r)
			}
		}()
		s.run(key)
	}()
	return nil
}

// run looks the job up at fire time so that a replaced job takes effect on the next fire.
func (s *CronScheduler) run(key string) {
	s.mu.Lock()
	job, ok := s.jobs[key]
	s.mu.Unlock()
	if !ok {
		return
	}
	job(s.ctx, key)
}

func (s *CronScheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.triggers {
		s.unscheduleLocked(key)
	}
	s.jobs = make(map[string]schedule.JobFunc)
}

func (s *CronScheduler) Start() {
	logger.Infof("Starting cron scheduler in %s", s.cron.Location())
	s.cron.Start()
}

// Stop stops the clock and waits for running jobs. When ctx ends first, the jobs' context is
// cancelled and ctx.Err() is returned.
func (s *CronScheduler) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Infof("Cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("cron scheduler did not stop in time: %w", ctx.Err())
	}
}

// Keys lists the registered job keys, sorted.
func (s *CronScheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.jobs))
	for k := range s.jobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Next returns the next fire time of the job's trigger.
func (s *CronScheduler) Next(key string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.triggers[key]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

var _ schedule.Scheduler = (*CronScheduler)(nil)
