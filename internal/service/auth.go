package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/metrics"
	"github.com/labsuite/labops/internal/models"
)

// ErrLoginLocked is returned while an account is locked out after repeated failures.
var ErrLoginLocked = errors.New("too many failed login attempts, try again later")

var errBadCredentials = &models.Error{Kind: models.ErrUnauthorized, Message: "invalid email or password"}

// PasswordVerifier checks a password against a stored hash.
type PasswordVerifier interface {
	Verify(password, encoded string) (bool, error)
}

// SessionIssuer signs session tokens.
type SessionIssuer interface {
	Issue(sess *models.Session) (string, time.Time, error)
}

// LoginGuard throttles repeated login failures per account.
type LoginGuard interface {
	IsBlocked(email string) bool
	RecordFailure(email string)
	Reset(email string)
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Session   *models.Session `json:"session"`
}

// AuthService verifies credentials and issues sessions.
type AuthService struct {
	users    domain.UserStore
	verifier PasswordVerifier
	issuer   SessionIssuer
	guard    LoginGuard
	log      *logrus.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users domain.UserStore, verifier PasswordVerifier, issuer SessionIssuer, guard LoginGuard, log *logrus.Logger,
) *AuthService {
	return &AuthService{users: users, verifier: verifier, issuer: issuer, guard: guard, log: log}
}

// Login checks email and password and returns a signed session carrying the
// user's current grants.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if s.guard.IsBlocked(email) {
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		return nil, ErrLoginLocked
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, s.fail(email)
	case err != nil:
		return nil, err
	}

	if !user.Active {
		return nil, s.fail(email)
	}

	ok, err := s.verifier.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("verifying password hash")
		return nil, s.fail(email)
	}
	if !ok {
		return nil, s.fail(email)
	}

	grants, err := s.users.Grants(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	sess := &models.Session{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Companies: grants,
	}

	token, expiresAt, err := s.issuer.Issue(sess)
	if err != nil {
		return nil, err
	}

	s.guard.Reset(email)
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.log.WithField("user_id", user.ID).Info("login")

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Session: sess}, nil
}

func (s *AuthService) fail(email string) error {
	s.guard.RecordFailure(email)
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()

	return errBadCredentials
}
