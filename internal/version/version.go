// Package version holds the build-time version string, set via -ldflags at
// release build time the same way the wider btcd-family tooling does.
package version

// these are overridden at build time via:
//
//	go build -ldflags "-X github.com/lbryio/lbcd/internal/version.appVersion=1.2.3"
var (
	appVersion = "0.0.0"
	commit     = "unknown"
)

// String returns the full version string printed by claimtrie-cli's
// version command.
func String() string {
	return appVersion + "-" + commit
}
