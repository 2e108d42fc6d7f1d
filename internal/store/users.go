package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.UserStore = (*UserStore)(nil)

// UserStore reads login identities and their grants.
type UserStore struct {
	Base
}

// NewUserStore creates a UserStore.
func NewUserStore(base Base) *UserStore {
	return &UserStore{Base: base}
}

// FindUserByEmail returns the user with the given email, case-insensitively.
func (s *UserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u models.User
	var id uuid.UUID

	err := s.Pool.QueryRow(ctx,
		`SELECT id, email, name, role, password_hash, active FROM users WHERE lower(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&id, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFoundf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}

	u.ID = id.String()

	return &u, nil
}

// Grants returns the company and location grants of a user.
func (s *UserStore) Grants(ctx context.Context, userID string) ([]models.CompanyGrant, error) {
	if !validID(userID) {
		return []models.CompanyGrant{}, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT company_id, location_id FROM company_members WHERE user_id = $1 ORDER BY company_id, location_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	grants := []models.CompanyGrant{}
	for rows.Next() {
		var companyID, locationID string
		if err := rows.Scan(&companyID, &locationID); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}

		if n := len(grants); n == 0 || grants[n-1].CompanyID != companyID {
			grants = append(grants, models.CompanyGrant{CompanyID: companyID})
		}
		last := &grants[len(grants)-1]
		last.Locations = append(last.Locations, models.LocationGrant{LocationID: locationID})
	}

	return grants, rows.Err()
}

// IsActiveUser reports whether the user still exists and is active.
func (s *UserStore) IsActiveUser(ctx context.Context, userID string) (bool, error) {
	if !validID(userID) {
		return false, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var active bool

	err := s.Pool.QueryRow(ctx, "SELECT active FROM users WHERE id = $1", userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}

	return active, nil
}
