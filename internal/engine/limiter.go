// Package engine executes backup jobs: admission control, the archive
// pipeline, and the runner's job lifecycle.
package engine

import (
	"context"
	"sync"
)

// Limiter bounds how many jobs drawn from the same settings profile run at
// once. Admission is FIFO per profile; the limiter holds no timers, only
// counts and wait queues.
type Limiter struct {
	mu       sync.Mutex
	profiles map[string]*profileState
}

type profileState struct {
	capacity int
	running  int
	waiters  []*waiter
}

type waiter struct {
	ready chan struct{}
}

// Slot represents one admitted execution. Release must be called exactly
// once per admitted job; it is idempotent so a defer is safe alongside an
// explicit call.
type Slot struct {
	limiter *Limiter
	profile string
	once    sync.Once
}

func NewLimiter() *Limiter {
	return &Limiter{profiles: make(map[string]*profileState)}
}

// Admit blocks until the profile has a free slot, in FIFO order. maxConcurrent
// comes from the job's own settings snapshot. The wait is cooperative: ctx
// cancellation abandons the queue position without consuming a slot.
func (l *Limiter) Admit(ctx context.Context, profileID string, maxConcurrent int) (*Slot, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	l.mu.Lock()
	p, ok := l.profiles[profileID]
	if !ok {
		p = &profileState{}
		l.profiles[profileID] = p
	}
	p.capacity = maxConcurrent

	if p.running < p.capacity {
		p.running++
		l.mu.Unlock()
		return &Slot{limiter: l, profile: profileID}, nil
	}

	w := &waiter{ready: make(chan struct{})}
	p.waiters = append(p.waiters, w)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return &Slot{limiter: l, profile: profileID}, nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-w.ready:
			// Lost the race: a release already handed us the slot, give it back.
			l.mu.Unlock()
			(&Slot{limiter: l, profile: profileID}).Release()
			return nil, ctx.Err()
		default:
		}
		for i, queued := range p.waiters {
			if queued == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				break
			}
		}
		l.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release frees the slot, waking the longest-waiting admission for the
// profile if there is one.
func (s *Slot) Release() {
	s.once.Do(func() {
		l := s.limiter
		l.mu.Lock()
		defer l.mu.Unlock()

		p, ok := l.profiles[s.profile]
		if !ok {
			return
		}

		if len(p.waiters) > 0 {
			// Hand the slot straight to the next waiter; running stays constant.
			next := p.waiters[0]
			p.waiters = p.waiters[1:]
			close(next.ready)
			return
		}

		p.running--
		if p.running <= 0 {
			delete(l.profiles, s.profile)
		}
	})
}

// Running reports the number of currently admitted jobs for a profile.
func (l *Limiter) Running(profileID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.profiles[profileID]; ok {
		return p.running
	}
	return 0
}

// Waiting reports the number of queued admissions for a profile.
func (l *Limiter) Waiting(profileID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.profiles[profileID]; ok {
		return len(p.waiters)
	}
	return 0
}
