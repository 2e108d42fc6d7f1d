// Command labops-cli is the operator command line for a labops server.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/labsuite/labops/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.1.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:8080"

var (
	apiClient    *client.Client
	flagURL      string
	flagToken    string
	flagFmt      string
	flagCompany  string
	flagLocation string
	flagProfile  string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("labops-cli version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("labops-cli version %s-dev", version)
}

// configProfile holds connection settings for one server.
type configProfile struct {
	URL        string `yaml:"url"`
	Token      string `yaml:"token,omitempty"`
	CompanyID  string `yaml:"company_id,omitempty"`
	LocationID string `yaml:"location_id,omitempty"`
}

type configFile struct {
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "labops-cli",
		Short:   "Command line client for the labops master data server",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			apiClient = client.New(flagURL, client.WithToken(flagToken))
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newKindsCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newEmployeeCmd())
	rootCmd.AddCommand(newBatchCmd())

	return rootCmd
}

func addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&flagURL, "url", defaultURL, "labops server URL (env: LABOPS_URL)")
	f.StringVar(&flagToken, "token", "", "Session token (env: LABOPS_TOKEN)")
	f.StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	f.StringVar(&flagCompany, "company", "", "Company ID (env: LABOPS_COMPANY)")
	f.StringVar(&flagLocation, "location", "", "Location ID (env: LABOPS_LOCATION)")
	f.StringVar(&flagProfile, "profile", "", "Config profile (default: the active profile)")
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".labops", "config.yaml"), nil
}

func readConfigFile() (*configFile, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *configFile) profileName() string {
	switch {
	case flagProfile != "":
		return flagProfile
	case c.ActiveProfile != "":
		return c.ActiveProfile
	default:
		return "default"
	}
}

// resolveConfig fills unset flags: flag first, then env, then config file.
func resolveConfig() {
	if flagURL == defaultURL {
		if v := os.Getenv("LABOPS_URL"); v != "" {
			flagURL = v
		}
	}
	if flagToken == "" {
		flagToken = os.Getenv("LABOPS_TOKEN")
	}
	if flagCompany == "" {
		flagCompany = os.Getenv("LABOPS_COMPANY")
	}
	if flagLocation == "" {
		flagLocation = os.Getenv("LABOPS_LOCATION")
	}

	cfg, err := readConfigFile()
	if err != nil {
		return
	}
	p, ok := cfg.Profiles[cfg.profileName()]
	if !ok {
		return
	}

	if flagURL == defaultURL && p.URL != "" {
		flagURL = p.URL
	}
	if flagToken == "" {
		flagToken = p.Token
	}
	if flagCompany == "" {
		flagCompany = p.CompanyID
	}
	if flagLocation == "" {
		flagLocation = p.LocationID
	}
}

// saveProfile merges update into the selected profile and writes the file.
func saveProfile(update func(p *configProfile)) (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}

	cfg, err := readConfigFile()
	if err != nil {
		cfg = &configFile{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]configProfile{}
	}

	name := cfg.profileName()
	p := cfg.Profiles[name]
	update(&p)
	cfg.Profiles[name] = p
	if cfg.ActiveProfile == "" {
		cfg.ActiveProfile = name
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

// scope returns the --company/--location pair, failing when either is unset.
func scope() client.Scope {
	if flagCompany == "" || flagLocation == "" {
		fatal("scope", fmt.Errorf("--company and --location are required (or set them in the profile)"))
	}
	return client.Scope{CompanyID: flagCompany, LocationID: flagLocation}
}

func company() string {
	if flagCompany == "" {
		fatal("scope", fmt.Errorf("--company is required (or set it in the profile)"))
	}
	return flagCompany
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
