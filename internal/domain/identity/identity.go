// Package identity defines the authenticated user model supplied by the
// external auth provider.
package identity

// User is the currently authenticated user as reported by the auth
// provider. The tenancy core never mutates auth state.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
