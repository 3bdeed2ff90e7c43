// Package authsource defines the port for the external auth provider's
// reactive session state.
package authsource

import (
	"context"

	"github.com/pulseboard/tenancy/internal/domain/identity"
)

// State is one observation of the auth provider. While Loading is true the
// tenancy core must not act on User.
type State struct {
	User    *identity.User
	Loading bool
}

// Source emits auth state changes. Subscribe delivers the current state
// first, then every change, and closes the channel when ctx ends.
type Source interface {
	Subscribe(ctx context.Context) <-chan State
}
