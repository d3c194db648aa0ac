package version

// version is overridden at build time with
// -ldflags "-X github.com/AmatanHead/points-game/pkg/version.version=v1.2.3"
var version = "dev"

func Get() string {
	return version
}
