package dynlib

import (
	"path/filepath"
	"runtime"
	"strings"
)

// LibraryName returns the platform file name for a library base name,
// e.g. "piece_core" becomes libpiece_core.so on Linux.
// Names that already carry a path separator or extension are returned as is.
func LibraryName(base string) string {
	if strings.ContainsRune(base, filepath.Separator) || filepath.Ext(base) != "" {
		return base
	}
	switch runtime.GOOS {
	case "darwin", "ios":
		return "lib" + base + ".dylib"
	case "windows":
		return base + ".dll"
	default:
		return "lib" + base + ".so"
	}
}

// Resolve joins dir and the platform file name for base. An empty dir leaves
// the lookup to the system loader.
func Resolve(dir, base string) string {
	name := LibraryName(base)
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
