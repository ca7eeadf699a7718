package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

type jobKind int

const (
	kindTicker jobKind = iota
	kindDelay
)

type job struct {
	kind   jobKind
	cancel chan struct{}
	once   sync.Once
}

func (j *job) stop() { j.once.Do(func() { close(j.cancel) }) }

// Scheduler runs named background jobs: repeating tickers for the
// arena sweep and one-shot delays for deferred cleanup. Registering a
// name twice replaces the earlier job.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*job
	log      *zap.Logger
	quit     chan struct{}
	quitOnce sync.Once
}

// New creates an empty Scheduler.
func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs: make(map[string]*job),
		quit: make(chan struct{}),
		log:  log,
	}
}

// AddTicker runs fn every interval until the job is removed or the
// scheduler stops.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	j := s.register(name, kindTicker)
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				s.run(name, fn)
			case <-j.cancel:
				return
			case <-s.quit:
				return
			}
		}
	}()
	s.log.Info("ticker registered", zap.String("job", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after delay unless the job is removed first.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	j := s.register(name, kindDelay)
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			s.run(name, fn)
			s.unregister(name, j)
		case <-j.cancel:
		case <-s.quit:
		}
	}()
}

// run executes fn, containing panics so one bad job cannot kill the
// goroutine driving it.
func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled job panicked",
				zap.String("job", name),
				zap.Any("recover", r))
		}
	}()
	fn()
}

func (s *Scheduler) register(name string, kind jobKind) *job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok {
		old.stop()
	}
	j := &job{kind: kind, cancel: make(chan struct{})}
	s.jobs[name] = j
	return j
}

// unregister drops name only while it still maps to j; a replacement
// registered in the meantime is left alone.
func (s *Scheduler) unregister(name string, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.jobs[name]; ok && cur == j {
		delete(s.jobs, name)
	}
}

// Remove cancels the job registered under name, if any.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		j.stop()
		delete(s.jobs, name)
	}
}

// Stop cancels every job. Safe to call from multiple goroutines.
func (s *Scheduler) Stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// ListTickers reports the names of the registered repeating jobs.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name, j := range s.jobs {
		if j.kind == kindTicker {
			names = append(names, name)
		}
	}
	return names
}
