package tokens

import (
	"context"
	"sync"

	"github.com/trash2cash/chatsync/internal/domain"
)

// MemoryCredentialStore keeps the credential for the life of the process.
type MemoryCredentialStore struct {
	mu   sync.Mutex
	cred *domain.Credential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (m *MemoryCredentialStore) Load(ctx context.Context) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	return &c, nil
}

func (m *MemoryCredentialStore) Save(ctx context.Context, cred *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cred
	m.cred = &c
	return nil
}

func (m *MemoryCredentialStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.cred = nil
	m.mu.Unlock()
	return nil
}
