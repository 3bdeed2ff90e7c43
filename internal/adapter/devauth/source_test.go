package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/pulseboard/tenancy/internal/domain/identity"
	"github.com/pulseboard/tenancy/internal/port/authsource"
)

var _ authsource.Source = (*Source)(nil)

func recvState(t *testing.T, ch <-chan authsource.State) authsource.State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auth state")
		return authsource.State{}
	}
}

func TestSubscribeDeliversCurrentStateFirst(t *testing.T) {
	s := New()
	s.Login(identity.User{ID: "u1", Email: "u1@example.com"})

	ch := s.Subscribe(context.Background())
	st := recvState(t, ch)
	if st.User == nil || st.User.ID != "u1" {
		t.Fatalf("expected current user u1 first, got %+v", st)
	}
}

func TestLoginLogoutSequence(t *testing.T) {
	s := New()
	ch := s.Subscribe(context.Background())

	if st := recvState(t, ch); st.User != nil {
		t.Fatalf("expected signed-out initial state, got %+v", st)
	}

	s.Login(identity.User{ID: "u1"})
	if st := recvState(t, ch); st.User == nil || st.User.ID != "u1" {
		t.Fatalf("expected u1 after login, got %+v", st)
	}

	s.Logout()
	if st := recvState(t, ch); st.User != nil {
		t.Fatalf("expected nil user after logout, got %+v", st)
	}
}

func TestSubscribeChannelClosesOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	recvState(t, ch) // initial

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A queued state may arrive before close; drain once more.
			if _, ok := <-ch; ok {
				t.Fatal("expected channel to close after cancellation")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}
