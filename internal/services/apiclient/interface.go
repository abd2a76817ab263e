package apiclient

import "context"

// TokenSource supplies bearer tokens to AuthClient.
type TokenSource interface {
	// AccessToken returns the held access token, if any.
	AccessToken(ctx context.Context) (string, bool)
	// Refresh exchanges the refresh token for a new access token, persists it
	// and returns it. Failure clears credentials and returns an AUTH_REQUIRED error.
	Refresh(ctx context.Context) (string, error)
}

// Doer is satisfied by AuthClient; services depend on it so tests can
// substitute a fake.
type Doer interface {
	Do(ctx context.Context, req Request) error
}
