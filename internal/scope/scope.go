// Package scope decides whether a session may act inside a tenant scope.
//
// Every tenant-scoped read, write, audit lookup and push subscription goes
// through Check. The functions are pure: they only consult the grants the
// session carries.
package scope

import "github.com/labsuite/labops/internal/models"

// Check returns nil when sess holds a grant for s.CompanyID that lists
// s.LocationID. Otherwise it returns models.ErrUnauthorized for a missing
// session, models.ErrNoCompanyAssigned when the session has no company grants
// at all, or models.ErrUnauthorizedLocation.
func Check(sess *models.Session, s models.Scope) error {
	if sess == nil {
		return models.ErrUnauthorized
	}

	if len(sess.Companies) == 0 {
		return models.ErrNoCompanyAssigned
	}

	for _, c := range sess.Companies {
		if c.CompanyID != s.CompanyID {
			continue
		}

		for _, l := range c.Locations {
			if l.LocationID == s.LocationID {
				return nil
			}
		}
	}

	return models.ErrUnauthorizedLocation
}

// CheckCompany is Check for company-level resources that have no location.
func CheckCompany(sess *models.Session, companyID string) error {
	if sess == nil {
		return models.ErrUnauthorized
	}

	if len(sess.Companies) == 0 {
		return models.ErrNoCompanyAssigned
	}

	for _, c := range sess.Companies {
		if c.CompanyID == companyID {
			return nil
		}
	}

	return models.ErrUnauthorizedLocation
}

// Locations lists the location ids sess may use in companyID.
func Locations(sess *models.Session, companyID string) []string {
	if sess == nil {
		return nil
	}

	var out []string
	for _, c := range sess.Companies {
		if c.CompanyID != companyID {
			continue
		}
		for _, l := range c.Locations {
			out = append(out, l.LocationID)
		}
	}

	return out
}
