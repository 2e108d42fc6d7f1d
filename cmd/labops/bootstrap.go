package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labsuite/labops/internal/crypto"
	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

const bootstrapActor = "bootstrap"

// seedOptions describes the first company, location and administrator.
type seedOptions struct {
	CompanyID    string
	CompanyName  string
	LocationID   string
	LocationName string
	Email        string
	Name         string
	Password     string
	EmployeeCode string
}

func (o *seedOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.CompanyID, "company-id", "", "Company ID")
	f.StringVar(&o.CompanyName, "company-name", "", "Company display name (defaults to the ID)")
	f.StringVar(&o.LocationID, "location-id", "", "Location ID")
	f.StringVar(&o.LocationName, "location-name", "", "Location display name (defaults to the ID)")
	f.StringVar(&o.Email, "admin-email", "", "Administrator email")
	f.StringVar(&o.Name, "admin-name", "Administrator", "Administrator display name")
	f.StringVar(&o.EmployeeCode, "admin-code", "ADMIN", "Administrator employee code")
}

// empty reports whether no seed was requested at all.
func (o *seedOptions) empty() bool {
	return o.CompanyID == "" && o.LocationID == "" && o.Email == ""
}

func (o *seedOptions) validate() error {
	var missing []string
	if o.CompanyID == "" {
		missing = append(missing, "--company-id")
	}
	if o.LocationID == "" {
		missing = append(missing, "--location-id")
	}
	if o.Email == "" {
		missing = append(missing, "--admin-email")
	}
	if o.Password == "" {
		missing = append(missing, "LABOPS_ADMIN_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}

	if len(o.Password) < 8 {
		return errors.New("admin password must be at least 8 characters")
	}

	return nil
}

func newBootstrapCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first company, location and administrator",
		Long: "Creates (or updates) a company and location, then adds an administrator\n" +
			"employee with access to that location. The password is read from\n" +
			"LABOPS_ADMIN_PASSWORD.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Password = os.Getenv("LABOPS_ADMIN_PASSWORD")
			if err := opts.validate(); err != nil {
				return err
			}

			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.InMemory() {
				return errors.New("bootstrap needs a database; in-memory servers seed with serve --memory flags")
			}

			log := newLogger(cfg)

			b, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.close()

			emp, err := seed(cmd.Context(), b.directory, b.employees, crypto.NewHasher(crypto.DefaultParams), opts)
			if err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"company_id":  emp.CompanyID,
				"employee_id": emp.ID,
				"email":       emp.Email,
			}).Info("administrator created")

			return nil
		},
	}

	opts.bindFlags(cmd)

	return cmd
}

// seed upserts the company and location and creates the administrator.
func seed(
	ctx context.Context, dir domain.DirectoryStore, employees domain.EmployeeStore, hasher *crypto.Hasher, o seedOptions,
) (*models.Employee, error) {
	companyName := o.CompanyName
	if companyName == "" {
		companyName = o.CompanyID
	}
	locationName := o.LocationName
	if locationName == "" {
		locationName = o.LocationID
	}

	if err := dir.UpsertCompany(ctx, models.Company{ID: o.CompanyID, Name: companyName}); err != nil {
		return nil, fmt.Errorf("creating company: %w", err)
	}
	if err := dir.UpsertLocation(ctx, models.Location{ID: o.LocationID, CompanyID: o.CompanyID, Name: locationName}); err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}

	hash, err := hasher.Hash(o.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	emp, err := employees.CreateEmployee(ctx, &models.Employee{
		EmployeeCode: o.EmployeeCode,
		Name:         o.Name,
		Email:        strings.ToLower(strings.TrimSpace(o.Email)),
		Role:         models.RoleAdmin,
		CompanyID:    o.CompanyID,
		LocationIDs:  []string{o.LocationID},
		CreatedBy:    bootstrapActor,
	}, hash)
	if err != nil {
		return nil, fmt.Errorf("creating administrator: %w", err)
	}

	return emp, nil
}
