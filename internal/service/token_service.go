package service

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-token-gate/internal/event"
	"go-token-gate/internal/metrics"
	"go-token-gate/internal/model"
	"go-token-gate/pkg/apierror"
)

// RotationPolicy decides which validly signed access tokens may be exchanged for a fresh one
// on an authenticated request.
type RotationPolicy int

const (
	// RotationAlways rotates any token with a valid signature, including expired ones.
	RotationAlways RotationPolicy = iota
	// RotationGrace rotates only tokens that expired no longer than TokenConfig.RotationGrace ago.
	RotationGrace
)

func (p RotationPolicy) String() string {
	if p == RotationGrace {
		return "grace"
	}
	return "always"
}

type TokenConfig struct {
	AccessSecret     string
	RefreshSecret    string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	Rotation         RotationPolicy
	RotationGrace    time.Duration
	RevokeOnMismatch bool
	Now              func() time.Time
}

type identityFinder interface {
	FindByName(name string) (model.Identity, error)
}

type sessionStore interface {
	Supersede(name string, token string) bool
	Current(name string) (string, bool)
	Revoke(name string) bool
	RevokeIfCurrent(name string, token string) bool
}

type TokenService struct {
	cfg           TokenConfig
	accessSecret  []byte
	refreshSecret []byte
	identities    identityFinder
	sessions      sessionStore
	events        event.Publisher
	metrics       *metrics.Metrics
}

func NewTokenService(cfg TokenConfig, identities identityFinder, sessions sessionStore, events event.Publisher, m *metrics.Metrics) (*TokenService, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.RotationGrace < 0 {
		return nil, errors.New("rotation grace cannot be negative")
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &TokenService{
		cfg:           cfg,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		identities:    identities,
		sessions:      sessions,
		events:        events,
		metrics:       m,
	}, nil
}

// IssueSession mints an access/refresh pair and makes the refresh token the identity's only
// live session.
func (s *TokenService) IssueSession(identity model.Identity) (model.Session, error) {
	now := s.cfg.Now()

	accessToken, err := s.signAccess(identity.Name, identity.Role, now)
	if err != nil {
		return model.Session{}, err
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, model.RefreshClaims{
		Username: identity.Name,
		Type:     model.TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Name,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL)),
		},
	}).SignedString(s.refreshSecret)
	if err != nil {
		return model.Session{}, err
	}

	if s.sessions.Supersede(identity.Name, refreshToken) {
		s.publish(event.TypeSessionSuperseded, identity.Name, nil)
	}
	s.publish(event.TypeSessionIssued, identity.Name, map[string]any{"role": string(identity.Role)})
	s.metrics.SessionIssued()

	return model.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         model.AuthUser{Username: identity.Name},
	}, nil
}

func (s *TokenService) VerifyAccess(token string) (*model.AccessClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apierror.Wrap(model.ErrTokenMissing, "TOKEN_MISSING", "access token is required", http.StatusUnauthorized)
	}

	claims := &model.AccessClaims{}
	_, err := s.parser(jwt.WithExpirationRequired()).ParseWithClaims(token, claims, s.accessKey)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierror.Wrap(model.ErrTokenExpired, "TOKEN_EXPIRED", "access token expired", http.StatusUnauthorized)
		}
		return nil, invalidAccess()
	}
	if claims.Type != model.TokenTypeAccess || claims.Username == "" {
		return nil, invalidAccess()
	}

	return claims, nil
}

// RotateAccess mints a replacement for a validly signed access token. Expiry is not part of
// verification here; the rotation policy alone decides whether an expired token qualifies.
// A policy refusal returns ok == false with a nil error.
func (s *TokenService) RotateAccess(token string) (string, bool, error) {
	claims := &model.AccessClaims{}
	_, err := s.parser(jwt.WithoutClaimsValidation()).ParseWithClaims(token, claims, s.accessKey)
	if err != nil || claims.Type != model.TokenTypeAccess || claims.Username == "" {
		s.metrics.Rotation(metrics.OutcomeFailed)
		return "", false, invalidAccess()
	}

	now := s.cfg.Now()
	if s.cfg.Rotation == RotationGrace {
		if claims.ExpiresAt == nil || now.After(claims.ExpiresAt.Add(s.cfg.RotationGrace)) {
			s.metrics.Rotation(metrics.OutcomeSkipped)
			return "", false, nil
		}
	}

	rotated, err := s.signAccess(claims.Username, claims.Role, now)
	if err != nil {
		s.metrics.Rotation(metrics.OutcomeFailed)
		return "", false, err
	}

	s.metrics.Rotation(metrics.OutcomeRotated)
	s.publish(event.TypeAccessRotated, claims.Username, nil)

	return rotated, true, nil
}

// RefreshSession exchanges the identity's live refresh token for a new access token. The role
// is read from the identity store, never from the token.
func (s *TokenService) RefreshSession(refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		s.metrics.Refresh(metrics.OutcomeMissing)
		return "", apierror.Wrap(model.ErrTokenMissing, "TOKEN_MISSING", "Refresh token not found.", http.StatusUnauthorized)
	}

	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeInvalid)
		return "", apierror.Wrap(model.ErrTokenInvalid, "TOKEN_INVALID", "Invalid refresh token.", http.StatusForbidden)
	}

	current, exists := s.sessions.Current(claims.Username)
	if !exists {
		s.metrics.Refresh(metrics.OutcomeRevoked)
		return "", revokedRefresh()
	}

	if subtle.ConstantTimeCompare([]byte(current), []byte(refreshToken)) != 1 {
		if s.cfg.RevokeOnMismatch && s.sessions.RevokeIfCurrent(claims.Username, current) {
			s.publish(event.TypeSessionReuseDetected, claims.Username, nil)
		}
		s.metrics.Refresh(metrics.OutcomeRevoked)
		return "", revokedRefresh()
	}

	identity, err := s.identities.FindByName(claims.Username)
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeRevoked)
		return "", revokedRefresh()
	}

	accessToken, err := s.signAccess(identity.Name, identity.Role, s.cfg.Now())
	if err != nil {
		return "", err
	}

	s.metrics.Refresh(metrics.OutcomeSuccess)
	s.publish(event.TypeSessionRefreshed, identity.Name, nil)

	return accessToken, nil
}

// EndSession revokes the stored refresh token of whoever the token names. Failures are
// logged and otherwise ignored.
func (s *TokenService) EndSession(refreshToken string) {
	if strings.TrimSpace(refreshToken) == "" {
		return
	}

	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		slog.Debug("logout with unverifiable refresh token", "error", err)
		return
	}

	if s.sessions.Revoke(claims.Username) {
		s.publish(event.TypeSessionRevoked, claims.Username, nil)
	}
}

func (s *TokenService) RefreshTTL() time.Duration {
	return s.cfg.RefreshTTL
}

func (s *TokenService) signAccess(name string, role model.Role, now time.Time) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, model.AccessClaims{
		Username: name,
		Role:     role,
		Type:     model.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}).SignedString(s.accessSecret)
}

func (s *TokenService) parseRefresh(token string) (*model.RefreshClaims, error) {
	claims := &model.RefreshClaims{}
	_, err := s.parser(jwt.WithExpirationRequired()).ParseWithClaims(token, claims, s.refreshKey)
	if err != nil {
		return nil, err
	}
	if claims.Type != model.TokenTypeRefresh || claims.Username == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

func (s *TokenService) parser(options ...jwt.ParserOption) *jwt.Parser {
	options = append(options,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	return jwt.NewParser(options...)
}

func (s *TokenService) accessKey(*jwt.Token) (any, error) {
	return s.accessSecret, nil
}

func (s *TokenService) refreshKey(*jwt.Token) (any, error) {
	return s.refreshSecret, nil
}

func (s *TokenService) publish(kind event.Type, actor string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(event.Event{Type: kind, Actor: actor, Payload: payload})
}

func invalidAccess() error {
	return apierror.Wrap(model.ErrTokenInvalid, "TOKEN_INVALID", "invalid access token", http.StatusUnauthorized)
}

func revokedRefresh() error {
	return apierror.Wrap(model.ErrTokenRevoked, "TOKEN_REVOKED", "Invalid refresh token.", http.StatusForbidden)
}
