// Package identity provides the client for the external identity provider.
//
// The provider owns all durable auth state: user accounts, sessions, and the
// lifetime of recovery codes. This package only speaks its HTTP surface and
// reports its failures verbatim so they can be shown to the user.
package identity

import "context"

// User is an account held by the identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated session issued by the identity provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	User         User   `json:"user"`
}

// Provider is the identity-provider surface the auth flows consume.
type Provider interface {
	// SignUp registers a new account and returns its session.
	SignUp(ctx context.Context, email, password string) (*Session, error)

	// SignIn exchanges credentials for a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignOut revokes the session behind the access token.
	SignOut(ctx context.Context, accessToken string) error

	// UserFromToken resolves the user behind an access token.
	UserFromToken(ctx context.Context, accessToken string) (*User, error)

	// IsEmailRegistered reports whether an account exists for the email.
	IsEmailRegistered(ctx context.Context, email string) (bool, error)

	// SendRecoveryCode asks the provider to email a one-time recovery code.
	SendRecoveryCode(ctx context.Context, email string) error

	// VerifyRecoveryCode validates a one-time code for the recovery purpose
	// and returns the recovery session on success.
	VerifyRecoveryCode(ctx context.Context, email, code string) (*Session, error)

	// UpdatePassword sets a new password for the user behind the
	// recovery-authenticated access token.
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}
