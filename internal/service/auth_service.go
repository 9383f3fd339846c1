package service

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"go-token-gate/internal/model"
	"go-token-gate/pkg/apierror"
)

type sessionIssuer interface {
	IssueSession(identity model.Identity) (model.Session, error)
}

type AuthService struct {
	identities identityFinder
	tokens     sessionIssuer

	// dummyHash keeps unknown usernames on the same bcrypt cost as known ones.
	dummyHash []byte
}

func NewAuthService(identities identityFinder, tokens sessionIssuer, bcryptCost int) (*AuthService, error) {
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("token-gate-dummy"), bcryptCost)
	if err != nil {
		return nil, err
	}

	return &AuthService{identities: identities, tokens: tokens, dummyHash: dummyHash}, nil
}

// SignIn checks basic credentials against the identity store and opens a new session,
// superseding any previous one for the same identity.
func (s *AuthService) SignIn(username string, password string) (model.Session, error) {
	identity, err := s.identities.FindByName(username)
	if err != nil {
		if !errors.Is(err, model.ErrIdentityNotFound) {
			return model.Session{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return model.Session{}, invalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return model.Session{}, invalidCredentials()
	}

	return s.tokens.IssueSession(identity)
}

func invalidCredentials() error {
	return apierror.Wrap(model.ErrCredentialInvalid, "INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized)
}
