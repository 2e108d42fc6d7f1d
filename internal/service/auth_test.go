package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsuite/labops/internal/crypto"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/security"
	"github.com/labsuite/labops/internal/session"
	"github.com/labsuite/labops/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthFixture(t *testing.T) (*AuthService, *session.Manager) {
	t.Helper()

	hasher := crypto.NewHasher(crypto.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	hash, err := hasher.Hash("s3cret-pass")
	require.NoError(t, err)

	users := memory.NewEmployeeStore(nil)
	users.AddUser(
		models.User{ID: "u1", Email: "ana@lab.test", Name: "Ana", Role: models.RoleAnalyst, PasswordHash: hash, Active: true},
		[]models.CompanyGrant{{CompanyID: "c1", Locations: []models.LocationGrant{{LocationID: "l1"}}}},
	)
	users.AddUser(
		models.User{ID: "u2", Email: "gone@lab.test", Role: models.RoleViewer, PasswordHash: hash, Active: false}, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mgr := session.NewManager(testSecret, time.Hour)
	svc := NewAuthService(users, hasher, mgr, security.NewBruteForceGuard(ctx, quietLogger()), quietLogger())

	return svc, mgr
}

func TestAuthService_LoginCarriesGrants(t *testing.T) {
	svc, mgr := newAuthFixture(t)

	res, err := svc.Login(context.Background(), "  ANA@lab.test ", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	sess, _, err := mgr.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	require.Len(t, sess.Companies, 1)
	assert.Equal(t, "c1", sess.Companies[0].CompanyID)
	assert.Equal(t, "l1", sess.Companies[0].Locations[0].LocationID)
}

func TestAuthService_RejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	for _, tc := range []struct{ email, password string }{
		{"ana@lab.test", "wrong"},
		{"nobody@lab.test", "s3cret-pass"},
		{"gone@lab.test", "s3cret-pass"},
	} {
		_, err := svc.Login(ctx, tc.email, tc.password)
		require.ErrorIs(t, err, models.ErrUnauthorized, tc.email)
		assert.EqualError(t, err, "invalid email or password")
	}
}

func TestAuthService_LocksOutAfterRepeatedFailures(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	for range security.BruteForceMaxAttempts {
		_, _ = svc.Login(ctx, "ana@lab.test", "wrong")
	}

	_, err := svc.Login(ctx, "ana@lab.test", "s3cret-pass")
	require.ErrorIs(t, err, ErrLoginLocked)
}
