package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Environment variables read by SourcesFromEnv.
const (
	EnvDefaultFile   = "SALESDASH_DEFAULT_FILE"
	EnvSheetCSVURL   = "SALESDASH_SHEET_CSV_URL"
	EnvMappingFile   = "SALESDASH_MAPPING_FILE"
	EnvAllowedDirs   = "SALESDASH_ALLOWED_DIRS"
	EnvEnableExports = "SALESDASH_ENABLE_EXPORTS"
)

// Sources describes where sales and mapping data may come from. It lives at
// the I/O boundary; the analysis core never reads it.
type Sources struct {
	// DefaultFile is loaded when a tool call names no source.
	DefaultFile string
	// SheetCSVURL is a public spreadsheet link used as the fallback remote source.
	SheetCSVURL string
	// MappingFile is the SKU to unified-code table applied when none is given.
	MappingFile string
	// AllowedDirs bounds every filesystem read and export write.
	AllowedDirs []string
	// ExportsEnabled exposes the export tools.
	ExportsEnabled bool
}

// SourcesFromEnv reads Sources from the process environment.
func SourcesFromEnv() Sources {
	return sourcesFrom(os.Getenv)
}

func sourcesFrom(getenv func(string) string) Sources {
	s := Sources{
		DefaultFile: strings.TrimSpace(getenv(EnvDefaultFile)),
		SheetCSVURL: strings.TrimSpace(getenv(EnvSheetCSVURL)),
		MappingFile: strings.TrimSpace(getenv(EnvMappingFile)),
	}
	if list := getenv(EnvAllowedDirs); list != "" {
		for _, d := range filepath.SplitList(list) {
			if d = strings.TrimSpace(d); d != "" {
				s.AllowedDirs = append(s.AllowedDirs, d)
			}
		}
	}
	s.ExportsEnabled = truthy(getenv(EnvEnableExports))
	return s
}

func truthy(v string) bool {
	v = strings.TrimSpace(v)
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "yes", "on", "enabled":
		return true
	}
	return false
}
