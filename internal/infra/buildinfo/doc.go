// Package buildinfo exposes version information.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/respkv-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Fields left at their defaults are filled from the module build info
// embedded by the Go toolchain when available.
package buildinfo
