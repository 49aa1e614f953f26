package poller

import (
	"context"
	"sync"
)

// Poller is one view's handle on a poll session. Several Pollers may observe one session.
type Poller struct {
	s       *session
	updates chan View
	done    chan struct{}

	mu        sync.Mutex
	stop      func() bool
	released  bool
	closeOnce sync.Once
}

func newPoller(s *session) *Poller {
	return &Poller{
		s:       s,
		updates: make(chan View, 1),
		done:    make(chan struct{}),
	}
}

// View returns the latest state, snapshot and error of the session.
func (p *Poller) View() View {
	return p.s.view()
}

// Updates delivers the latest View after each change. Unread values are replaced.
// The channel is closed once the Poller is done.
func (p *Poller) Updates() <-chan View {
	return p.updates
}

// Done is closed when the session stops or the Poller is closed.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Close detaches this view. When no views remain the session stops and
// any in-flight query result is dropped. Safe to call more than once.
func (p *Poller) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		stop := p.stop
		p.mu.Unlock()
		if stop != nil {
			stop()
		}
		p.s.detach(p)
	})
}

// bindContext closes p when ctx is cancelled.
func (p *Poller) bindContext(ctx context.Context) *Poller {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop = context.AfterFunc(ctx, p.Close)
	return p
}

// release is called by the session with its lock held.
func (p *Poller) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	close(p.updates)
	close(p.done)
}

// Wait blocks until p is done or ctx ends and returns the final view.
// The error is the view's error, or ctx's error if ctx ended first.
func Wait(ctx context.Context, p *Poller) (View, error) {
	select {
	case <-p.Done():
		v := p.View()
		return v, v.Err
	case <-ctx.Done():
		return p.View(), ctx.Err()
	}
}
