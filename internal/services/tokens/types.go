package tokens

import (
	"context"

	"github.com/trash2cash/chatsync/internal/domain"
)

// Logger interface for the token store
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// CredentialStore persists the single access/refresh pair.
type CredentialStore interface {
	// Load returns nil, nil when nothing is stored.
	Load(ctx context.Context) (*domain.Credential, error)
	Save(ctx context.Context, cred *domain.Credential) error
	Clear(ctx context.Context) error
}
