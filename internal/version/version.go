package version

import (
	"runtime/debug"
	"strings"
)

// Default is the default version value used when none was found.
const Default = "dev"

// version is set by ldflag for the bitmaskimm CLI.
var version string

// GetBitmaskimmVersion returns the current version of this module either in the go.mod of the
// main module or set by ldflag for the bitmaskimm CLI.
func GetBitmaskimmVersion() (ret string) {
	if len(version) != 0 {
		return version
	}

	info, ok := debug.ReadBuildInfo()
	if ok {
		for _, dep := range info.Deps {
			if strings.Contains(dep.Path, "github.com/tetratelabs/bitmaskimm") {
				ret = dep.Version
			}
		}

		// The CLI is built as the main module, so the version comes from info.Main.
		if versionMissing(ret) {
			ret = info.Main.Version
		}
	}
	if versionMissing(ret) {
		return Default
	}
	return
}

func versionMissing(ret string) bool {
	return ret == "" || ret == "(devel)"
}
