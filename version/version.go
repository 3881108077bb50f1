// Package version reports the version of the chipbox build.
package version

import "runtime/debug"

// Version can be set at build time with something like:
// go build -ldflags "-X github.com/vsariola/chipbox/version.Version=$(git describe --dirty)"
var Version string

// Hash is the short VCS revision the binary was built from, with -dirty
// appended for modified trees, or empty if unknown.
var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	revision, modified := "", false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value[:min(len(setting.Value), 7)]
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision != "" && modified {
		return revision + "-dirty"
	}
	return revision
}()

// VersionOrHash is Version if it was set, Hash otherwise.
var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()
