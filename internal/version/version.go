package version

// version is set at build time via:
//
//	-ldflags "-X github.com/0xa1bed0/listend/internal/version.version=v1.2.3"
//
// "local" means a plain `go build` without version stamping.
var version = "local"

func Get() string {
	return version
}
