// Package version carries build information for the pixelflow binary.
//
// Version, commit, branch and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/pixelflow/version.Version=1.0.0" ./cmd/pixelflow
//
// Values left empty are filled from the module's embedded VCS settings.
package version
