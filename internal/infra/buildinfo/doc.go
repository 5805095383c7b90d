// Package buildinfo exposes version information injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/savekeep-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When ldflags are absent, Get falls back to the module version and VCS
// revision recorded by the Go toolchain.
package buildinfo
