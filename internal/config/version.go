package config

// Version is the labops binary version.
// Set at build time via: -ldflags "-X github.com/labsuite/labops/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
