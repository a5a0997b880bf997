// Package version reports build information injected at link time.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/notebridge/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/notebridge/internal/version.Commit=abc123
//	  -X github.com/soyeahso/notebridge/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build is the build information in structured form.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build information. A binary installed with "go install"
// carries no ldflags, so the module version is used when available.
func Get() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Version = info.Main.Version
		}
	}
	return b
}

// Info returns a formatted version string.
func Info() string {
	b := Get()
	return fmt.Sprintf("notebridge %s (commit: %s, built: %s, %s)",
		b.Version, short(b.Commit), b.Date, b.Platform)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
