package version

// Version is the codenav release version, overridden at build time via
// -ldflags "-X codenav/internal/version.Version=...".
var Version = "0.3.0-dev"
