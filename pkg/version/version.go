package version

// Version is the semantic version of the build, overridden at build time
// with -ldflags "-X github.com/projectdiscovery/netinventory/pkg/version.Version=..."
var Version = "v0.1.0"

// GetVersion returns the version string
func GetVersion() string {
	return Version
}
