// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent is sent on every outbound request to the registry.
func UserAgent() string {
	return "normgate/" + Version + " (+" + Commit + ")"
}
