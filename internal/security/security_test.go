package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// realTempDir resolves t.TempDir so comparisons hold where /tmp is a symlink.
func realTempDir(t *testing.T) string {
	t.Helper()
	real, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return real
}

func newManager(t *testing.T, dirs ...string) *Manager {
	t.Helper()
	m, err := NewManager(dirs, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("sku\nA\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestManagerConfig(t *testing.T) {
	dir := realTempDir(t)
	m := newManager(t, " ", dir)
	if err := m.ValidateConfig(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	got := m.AllowedDirectories()
	if len(got) != 1 || got[0] != dir {
		t.Fatalf("allowed dirs = %v, want [%s]", got, dir)
	}
	got[0] = "mutated"
	if m.AllowedDirectories()[0] != dir {
		t.Fatalf("AllowedDirectories exposed internal state")
	}

	if err := newManager(t).ValidateConfig(); err == nil {
		t.Fatalf("expected error for empty allow-list")
	}
	if _, err := NewManager([]string{filepath.Join(dir, "missing")}, nil); err == nil {
		t.Fatalf("expected error for missing allow-list dir")
	}
	if _, err := NewManager([]string{dir}, []string{"csv"}); err == nil {
		t.Fatalf("expected error for extension without dot")
	}

	t.Setenv("SALESDASH_ALLOWED_DIRS", dir)
	fromEnv, err := NewManagerFromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if got := fromEnv.AllowedDirectories(); len(got) != 1 || got[0] != dir {
		t.Fatalf("env allowed dirs = %v, want [%s]", got, dir)
	}
}

func TestValidateOpenPath(t *testing.T) {
	root := realTempDir(t)
	outside := realTempDir(t)
	for _, d := range []string{"sub", "dir.csv"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	m := newManager(t, root)

	okXLSX := touch(t, filepath.Join(root, "sub", "orders.xlsx"))
	okCSV := touch(t, filepath.Join(root, "orders.CSV"))
	escape := touch(t, filepath.Join(outside, "escape.csv"))
	txt := touch(t, filepath.Join(root, "notes.txt"))

	cases := []struct {
		name string
		path string
		want error
	}{
		{"nested xlsx", okXLSX, nil},
		{"upper-case csv", okCSV, nil},
		{"outside roots", escape, ErrNotAllowed},
		{"missing", filepath.Join(root, "nope.xlsx"), ErrNotFound},
		{"text file", txt, ErrUnsupportedExtension},
		{"empty", "", ErrNotAllowed},
		{"directory", filepath.Join(root, "dir.csv"), ErrNotAllowed},
	}
	for _, tc := range cases {
		got, err := m.ValidateOpenPath(tc.path)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			if got != tc.path {
				t.Fatalf("%s: got %q, want %q", tc.name, got, tc.path)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestValidateOpenPath_SymlinkEscapeDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := realTempDir(t)
	target := touch(t, filepath.Join(realTempDir(t), "target.xlsx"))
	link := filepath.Join(root, "link.xlsx")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := newManager(t, root).ValidateOpenPath(link); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed for symlink escape, got %v", err)
	}
}

func TestValidateWritePath(t *testing.T) {
	root := realTempDir(t)
	m := newManager(t, root)

	target := filepath.Join(root, "out.csv")
	got, err := m.ValidateWritePath(target, false)
	if err != nil {
		t.Fatalf("validate write: %v", err)
	}
	if got != target {
		t.Fatalf("got %q, want %q", got, target)
	}

	touch(t, target)
	if _, err := m.ValidateWritePath(target, false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := m.ValidateWritePath(target, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	cases := []struct {
		name string
		path string
		want error
	}{
		{"outside roots", filepath.Join(realTempDir(t), "out.xlsx"), ErrNotAllowed},
		{"missing parent", filepath.Join(root, "missing", "out.csv"), ErrNotFound},
		{"json", filepath.Join(root, "out.json"), ErrUnsupportedExtension},
		{"macro workbook", filepath.Join(root, "out.xlsm"), ErrUnsupportedExtension},
	}
	for _, tc := range cases {
		if _, err := m.ValidateWritePath(tc.path, true); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestValidateWritePath_RefusesSymlinkTarget(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := realTempDir(t)
	elsewhere := touch(t, filepath.Join(realTempDir(t), "victim.csv"))
	link := filepath.Join(root, "report.csv")
	if err := os.Symlink(elsewhere, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := newManager(t, root).ValidateWritePath(link, true); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed for symlink target, got %v", err)
	}
}
