package imports

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("// calyx\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return resolved
}

func TestResolvePrefersCurrentDirectory(t *testing.T) {
	cur := t.TempDir()
	lib := t.TempDir()
	inCur := writeFile(t, filepath.Join(cur, "core.futil"))
	inLib := writeFile(t, filepath.Join(lib, "core.futil"))

	got := Resolve(cur, []string{lib}, []string{"core.futil"})
	want := []string{inCur, inLib}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolved = %v, want %v", got, want)
	}
}

func TestResolveFallsBackToLibraryRoots(t *testing.T) {
	cur := t.TempDir()
	lib := t.TempDir()
	inLib := writeFile(t, filepath.Join(lib, "primitives", "core.futil"))

	got := Resolve(cur, []string{lib}, []string{"primitives/core.futil"})
	want := []string{inLib}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolved = %v, want %v", got, want)
	}
}

func TestResolveDropsMissingImports(t *testing.T) {
	cur := t.TempDir()
	lib := t.TempDir()

	if got := Resolve(cur, []string{lib}, []string{"nope.futil"}); len(got) != 0 {
		t.Errorf("resolved = %v, want none", got)
	}
}

func TestResolveKeepsImportOrder(t *testing.T) {
	cur := t.TempDir()
	first := writeFile(t, filepath.Join(cur, "a.futil"))
	second := writeFile(t, filepath.Join(cur, "b.futil"))

	got := Resolve(cur, nil, []string{"a.futil", "b.futil"})
	want := []string{first, second}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolved = %v, want %v", got, want)
	}
}

func TestResolveExpandsTildeRoots(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	inHome := writeFile(t, filepath.Join(home, ".calyx", "core.futil"))

	got := Resolve(t.TempDir(), []string{"~/.calyx"}, []string{"core.futil"})
	want := []string{inHome}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolved = %v, want %v", got, want)
	}
}

func TestExpandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/lib", filepath.Join(home, "lib")},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
		{"~user/lib", "~user/lib"},
	}
	for _, tt := range tests {
		if got := ExpandTilde(tt.in); got != tt.want {
			t.Errorf("ExpandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
