// Package devauth implements the auth source port with a manually driven
// in-memory provider. The daemon exposes it on /dev endpoints for local
// development; production builds plug in the real auth provider instead.
package devauth

import (
	"context"
	"sync"

	"github.com/pulseboard/tenancy/internal/domain/identity"
	"github.com/pulseboard/tenancy/internal/port/authsource"
)

// Source is a manually driven authsource.Source.
type Source struct {
	mu    sync.Mutex
	state authsource.State
	subs  map[chan authsource.State]struct{}
}

// New creates a Source with no authenticated user.
func New() *Source {
	return &Source{
		subs: make(map[chan authsource.State]struct{}),
	}
}

// Subscribe delivers the current state first, then every change. The channel
// closes when ctx ends.
func (s *Source) Subscribe(ctx context.Context) <-chan authsource.State {
	ch := make(chan authsource.State, 8)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.state
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Login publishes an authenticated user.
func (s *Source) Login(u identity.User) {
	s.set(authsource.State{User: &u})
}

// Logout publishes a signed-out state.
func (s *Source) Logout() {
	s.set(authsource.State{})
}

// SetLoading publishes an auth-in-flight state; the session pipeline must
// not act until loading clears.
func (s *Source) SetLoading() {
	s.set(authsource.State{Loading: true})
}

func (s *Source) set(st authsource.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	for ch := range s.subs {
		select {
		case ch <- st:
		default:
			// Slow subscriber; drop rather than block the auth provider.
		}
	}
}

// Current returns the latest published state.
func (s *Source) Current() authsource.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
