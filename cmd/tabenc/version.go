package main

import "runtime/debug"

// VERSION is the version of the tabenc CLI tool, set at build time via
// ldflags. If not set, it attempts to read the version from Go module info
// (for go install).
var VERSION = getVersion()

func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// version is set via ldflags: -X main.version=x.y.z
var version string
