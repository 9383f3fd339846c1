package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"go-token-gate/internal/model"
)

type seedIdentity struct {
	Username string
	Password string
	Role     model.Role
}

var defaultIdentities = []seedIdentity{
	{Username: "admin", Password: "admin123", Role: model.RoleAdmin},
	{Username: "user", Password: "user123", Role: model.RoleUser},
}

// LoadIdentities reads identities with pre-hashed passwords from usersFile, or hashes the
// built-in demo accounts when usersFile is empty.
func LoadIdentities(usersFile string, bcryptCost int) ([]model.Identity, error) {
	if strings.TrimSpace(usersFile) == "" {
		return hashDefaultIdentities(bcryptCost)
	}

	data, err := os.ReadFile(usersFile)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	var identities []model.Identity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("users file %s has no identities", usersFile)
	}

	for i := range identities {
		if _, err := bcrypt.Cost([]byte(identities[i].PasswordHash)); err != nil {
			return nil, fmt.Errorf("identity %q: password_hash is not a bcrypt hash", identities[i].Name)
		}
		identities[i].Role = model.Role(strings.ToLower(string(identities[i].Role)))
	}

	return identities, nil
}

func hashDefaultIdentities(bcryptCost int) ([]model.Identity, error) {
	identities := make([]model.Identity, 0, len(defaultIdentities))
	for _, seed := range defaultIdentities {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %q: %w", seed.Username, err)
		}
		identities = append(identities, model.Identity{
			Name:         seed.Username,
			PasswordHash: string(hash),
			Role:         seed.Role,
		})
	}

	return identities, nil
}
