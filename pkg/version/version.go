package version

// version is set at build time with
// -ldflags "-X github.com/cbodonnell/lockstep/pkg/version.version=v0.1.0"
var version = "dev"

func Get() string {
	return version
}
