package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labsuite/labops/client"
)

func newLoginCmd() *cobra.Command {
	var email string
	var save bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token in the profile",
		Long: "Signs in with email and password. The password is read from\n" +
			"LABOPS_PASSWORD or, when unset, from the first line of stdin.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			password, err := readPassword()
			if err != nil {
				fatal("read password", err)
			}

			res, err := apiClient.Auth.Login(context.Background(), email, password)
			if err != nil {
				fatal("login", err)
			}

			if save {
				path, err := saveProfile(func(p *configProfile) {
					p.URL = flagURL
					p.Token = res.Token
					if p.CompanyID == "" && res.Session != nil && len(res.Session.Companies) == 1 {
						p.CompanyID = res.Session.Companies[0].CompanyID
					}
				})
				if err != nil {
					fatal("save profile", err)
				}
				fmt.Fprintf(os.Stderr, "Token saved to %s\n", path)
			}

			output(res, sessionTable(res.Session), res.Token)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().BoolVar(&save, "save", true, "Store the token in the config profile")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func readPassword() (string, error) {
	if v := os.Getenv("LABOPS_PASSWORD"); v != "" {
		return v, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info, err := apiClient.Auth.Session(context.Background())
			if err != nil {
				fatal("session", err)
			}
			if info.Session == nil {
				fatal("session", errors.New("server returned no session"))
			}
			output(info, sessionTable(info.Session), info.Session.UserID)
		},
	}
}

func sessionTable(s *client.Session) table {
	return func() ([]string, [][]string) {
		headers := []string{"USER", "ROLE", "COMPANY", "LOCATIONS"}
		if s == nil {
			return headers, nil
		}
		var rows [][]string
		for _, c := range s.Companies {
			locs := make([]string, 0, len(c.Locations))
			for _, l := range c.Locations {
				locs = append(locs, l.LocationID)
			}
			rows = append(rows, []string{s.Email, s.Role, c.CompanyID, strings.Join(locs, ",")})
		}
		return headers, rows
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			h, err := apiClient.Health(context.Background())
			if err != nil {
				fatal("health", err)
			}
			output(h, func() ([]string, [][]string) {
				return []string{"STATUS", "VERSION", "SCHEMA", "DATABASE"},
					[][]string{{h.Status, h.Version, fmt.Sprint(h.SchemaVersion), h.Database}}
			}, h.Status)
		},
	}
}
