package tor

import (
	"context"
	"sync"
)

// SessionState is where the process-wide tor client is in its life.
type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateBootstrapping
	StateReady
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapping:
		return "bootstrapping"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session bootstraps at most once per process.  Whatever the first attempt
// ends with, a manager or an error, is what every later caller gets.
type Session struct {
	cfg  Config
	boot Bootstrapper

	once sync.Once
	done chan struct{}

	mtx   sync.Mutex
	state SessionState
	mgr   *Manager
	err   error
}

// NewSession doesn't start anything yet.
func NewSession(cfg Config, boot Bootstrapper) *Session {
	return &Session{
		cfg:  cfg,
		boot: boot,
		done: make(chan struct{}),
	}
}

// State is safe to call at any time.
func (s *Session) State() SessionState {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// Start kicks off the bootstrap if nobody has yet.  It doesn't wait.
func (s *Session) Start() {
	s.once.Do(func() {
		s.mtx.Lock()
		s.state = StateBootstrapping
		s.mtx.Unlock()

		go func() {
			// Bootstrap isn't tied to whoever asked first, the timeout in
			// cfg bounds it.
			mgr, err := NewManager(context.Background(), s.cfg, s.boot)

			s.mtx.Lock()
			if err != nil {
				s.state = StateFailed
				s.err = err
			} else {
				s.state = StateReady
				s.mgr = mgr
			}
			s.mtx.Unlock()
			close(s.done)
		}()
	})
}

// Manager waits for the bootstrap, starting it if needed.
func (s *Session) Manager(ctx context.Context) (*Manager, error) {
	s.Start()

	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.mgr, s.err
}

// Close tears down the client if it ever came up.
func (s *Session) Close() error {
	s.mtx.Lock()
	mgr := s.mgr
	s.mtx.Unlock()

	if mgr == nil {
		return nil
	}
	return mgr.Close()
}
