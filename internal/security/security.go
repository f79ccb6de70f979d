package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vinodismyname/mcpsales/config"
)

var (
	// SourceExtensions are the file types the loaders read.
	SourceExtensions = []string{".xlsx", ".xlsm", ".csv"}
	// ExportExtensions are the file types export_rows writes.
	ExportExtensions = []string{".xlsx", ".csv"}
)

var (
	ErrNotAllowed           = errors.New("security: path not allowed")
	ErrUnsupportedExtension = errors.New("security: unsupported file extension")
	ErrNotFound             = errors.New("security: file not found")
	ErrExists               = errors.New("security: file already exists")
)

// Manager confines reads and export writes to a set of root directories.
// Roots are stored absolute with symlinks resolved, and every candidate path
// is resolved the same way before the containment check.
type Manager struct {
	roots     []string
	readExts  []string
	writeExts []string
}

// NewManager resolves each allow-list directory. sourceExts overrides
// SourceExtensions when non-empty; entries need a leading dot.
func NewManager(allowDirs []string, sourceExts []string) (*Manager, error) {
	if len(sourceExts) == 0 {
		sourceExts = SourceExtensions
	}
	readExts, err := normalizeExts(sourceExts)
	if err != nil {
		return nil, err
	}
	writeExts, _ := normalizeExts(ExportExtensions)

	m := &Manager{readExts: readExts, writeExts: writeExts}
	for _, d := range allowDirs {
		if d = strings.TrimSpace(d); d == "" {
			continue
		}
		root, err := resolveRoot(d)
		if err != nil {
			return nil, err
		}
		m.roots = append(m.roots, root)
	}
	return m, nil
}

// NewManagerFromEnv reads the allow-list from SALESDASH_ALLOWED_DIRS. An
// unset variable denies everything.
func NewManagerFromEnv() (*Manager, error) {
	return NewManager(config.SourcesFromEnv().AllowedDirs, nil)
}

func normalizeExts(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") || len(e) < 2 {
			return nil, fmt.Errorf("security: invalid extension %q", e)
		}
		out = append(out, e)
	}
	return out, nil
}

func resolveRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("security: allow-list entry %q: %w", dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("security: allow-list entry %q: %w", dir, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("security: allow-list entry %q: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("security: allow-list entry %q is not a directory", dir)
	}
	return filepath.Clean(real), nil
}

// AllowedDirectories returns a copy of the resolved roots.
func (m *Manager) AllowedDirectories() []string {
	return slices.Clone(m.roots)
}

// ValidateConfig fails when the allow-list is empty.
func (m *Manager) ValidateConfig() error {
	if len(m.roots) == 0 {
		return errors.New("security: no allowed directories configured")
	}
	return nil
}

// ValidateOpenPath resolves input to an existing regular file under a root
// and returns the resolved path.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if err := checkExt(input, m.readExts); err != nil {
		return "", err
	}
	real, err := resolve(input)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", statErr(err)
	}
	if info.IsDir() || !m.within(real) {
		return "", ErrNotAllowed
	}
	return real, nil
}

// ValidateWritePath resolves an export target. Its directory must already
// exist under a root. An existing file is refused unless overwrite is set,
// and symlinks are always refused.
func (m *Manager) ValidateWritePath(input string, overwrite bool) (string, error) {
	if err := checkExt(input, m.writeExts); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: %w", err)
	}
	dir, err := resolve(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, filepath.Base(abs))
	if !m.within(target) {
		return "", ErrNotAllowed
	}

	info, err := os.Lstat(target)
	if errors.Is(err, os.ErrNotExist) {
		return target, nil
	}
	if err != nil {
		return "", fmt.Errorf("security: %w", err)
	}
	if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
		return "", ErrNotAllowed
	}
	if !overwrite {
		return "", ErrExists
	}
	return target, nil
}

func checkExt(p string, allowed []string) error {
	if strings.TrimSpace(p) == "" {
		return ErrNotAllowed
	}
	if !slices.Contains(allowed, strings.ToLower(filepath.Ext(p))) {
		return ErrUnsupportedExtension
	}
	return nil
}

// resolve returns the absolute, symlink-free form of p.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("security: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", statErr(err)
	}
	return real, nil
}

func statErr(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("security: %w", err)
}

// within reports whether p lies strictly below one of the roots.
func (m *Manager) within(p string) bool {
	for _, root := range m.roots {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
