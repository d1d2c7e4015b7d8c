package dynlib

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestLibraryName(t *testing.T) {
	var want string
	switch runtime.GOOS {
	case "darwin", "ios":
		want = "libpiece_core.dylib"
	case "windows":
		want = "piece_core.dll"
	default:
		want = "libpiece_core.so"
	}
	if got := LibraryName("piece_core"); got != want {
		t.Errorf("LibraryName() = %q, want %q", got, want)
	}

	for _, name := range []string{"custom.so", filepath.Join("lib", "x")} {
		if got := LibraryName(name); got != name {
			t.Errorf("LibraryName(%q) = %q, want unchanged", name, got)
		}
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("", "wal_glfw"); got != LibraryName("wal_glfw") {
		t.Errorf("Resolve without dir = %q", got)
	}
	want := filepath.Join("build", LibraryName("pal_box2d_backend"))
	if got := Resolve("build", "pal_box2d_backend"); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}
