package repository

import (
	"fmt"
	"strings"
	"sync"

	"go-token-gate/internal/model"
)

type IdentityRepository struct {
	mu         sync.RWMutex
	identities map[string]model.Identity
}

func NewIdentityRepository(identities []model.Identity) (*IdentityRepository, error) {
	byName := make(map[string]model.Identity, len(identities))
	for _, identity := range identities {
		key := identityKey(identity.Name)
		if key == "" {
			return nil, fmt.Errorf("identity name is required")
		}
		if !identity.Role.Valid() {
			return nil, fmt.Errorf("identity %q has invalid role %q", identity.Name, identity.Role)
		}
		if _, exists := byName[key]; exists {
			return nil, fmt.Errorf("duplicate identity %q", identity.Name)
		}
		byName[key] = identity
	}

	return &IdentityRepository{identities: byName}, nil
}

func (r *IdentityRepository) FindByName(name string) (model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, exists := r.identities[identityKey(name)]
	if !exists {
		return model.Identity{}, model.ErrIdentityNotFound
	}

	return identity, nil
}

func (r *IdentityRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.identities)
}

func identityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
