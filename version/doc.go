// Package version reports build information. Stamp it at link time:
//
//	go build -ldflags "-X github.com/kbukum/warden/version.Version=1.2.0"
package version
