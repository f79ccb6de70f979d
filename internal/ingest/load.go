package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/mcpsales/internal/runtime"
	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/vinodismyname/mcpsales/internal/security"
	"github.com/vinodismyname/mcpsales/pkg/version"
	"golang.org/x/sync/errgroup"
)

// Source names one place to read a table from. Path wins over URL.
type Source struct {
	Path  string `json:"path,omitempty"`
	URL   string `json:"url,omitempty"`
	Sheet string `json:"sheet,omitempty"`
}

// IsZero reports whether the source names nothing.
func (s Source) IsZero() bool { return s.Path == "" && s.URL == "" }

// Loaded is a decoded table plus provenance.
type Loaded struct {
	Table       sales.Table
	Format      Format
	Origin      string
	Fingerprint string
	Bytes       int64
	Warnings    []Warning
}

// Loader reads sales and mapping tables from the filesystem or a public
// spreadsheet link, enforcing the allow-list and size guardrails.
type Loader struct {
	Security *security.Manager
	Client   *http.Client
	Limits   runtime.Limits
	Logger   zerolog.Logger
}

// NewLoader wires a Loader with a client bounded by the fetch timeout.
func NewLoader(sec *security.Manager, limits runtime.Limits, logger zerolog.Logger) *Loader {
	return &Loader{
		Security: sec,
		Client:   &http.Client{Timeout: limits.FetchTimeout},
		Limits:   limits,
		Logger:   logger,
	}
}

// LoadFile reads a local CSV or workbook inside the allow-list.
func (l *Loader) LoadFile(ctx context.Context, path, sheet string) (Loaded, error) {
	if err := ctx.Err(); err != nil {
		return Loaded{}, err
	}
	canonical, err := l.Security.ValidateOpenPath(path)
	if err != nil {
		return Loaded{}, err
	}
	f, err := os.Open(canonical)
	if err != nil {
		return Loaded{}, fmt.Errorf("ingest: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := l.readCapped(f)
	if err != nil {
		return Loaded{}, err
	}
	return l.decode(canonical, canonical, data, sheet)
}

var sheetPath = regexp.MustCompile(`^/spreadsheets/d/([A-Za-z0-9_-]+)`)

// SheetExportURL rewrites a shared spreadsheet link (…/edit#gid=N) into its
// CSV export form, keeping the tab id. Other URLs are returned unchanged.
func SheetExportURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("ingest: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("ingest: unsupported url scheme %q", u.Scheme)
	}
	if u.Host != "docs.google.com" {
		return u.String(), nil
	}
	m := sheetPath.FindStringSubmatch(u.Path)
	if m == nil {
		return u.String(), nil
	}
	if strings.HasSuffix(u.Path, "/export") && u.Query().Get("format") == "csv" {
		return u.String(), nil
	}
	gid := u.Query().Get("gid")
	if gid == "" {
		if frag, err := url.ParseQuery(u.Fragment); err == nil {
			gid = frag.Get("gid")
		}
	}
	q := url.Values{"format": {"csv"}}
	if gid != "" {
		q.Set("gid", gid)
	}
	out := url.URL{Scheme: "https", Host: u.Host, Path: "/spreadsheets/d/" + m[1] + "/export", RawQuery: q.Encode()}
	return out.String(), nil
}

// LoadURL downloads a public sheet export or a CSV/XLSX file over HTTP.
func (l *Loader) LoadURL(ctx context.Context, raw, sheet string) (Loaded, error) {
	target, err := SheetExportURL(raw)
	if err != nil {
		return Loaded{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Loaded{}, fmt.Errorf("ingest: build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Loaded{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Loaded{}, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}
	if resp.ContentLength > 0 && l.Limits.MaxFileBytes > 0 && resp.ContentLength > l.Limits.MaxFileBytes {
		return Loaded{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}
	data, err := l.readCapped(resp.Body)
	if err != nil {
		return Loaded{}, err
	}
	// Private sheets answer with a sign-in page instead of CSV.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return Loaded{}, fmt.Errorf("%w: received html, sheet is probably not public", ErrFetch)
	}

	name := resp.Request.URL.Path
	if strings.Contains(target, "format=csv") {
		name = "export.csv"
	}
	return l.decode(name, target, data, sheet)
}

// LoadSource dispatches to LoadFile or LoadURL.
func (l *Loader) LoadSource(ctx context.Context, src Source) (Loaded, error) {
	switch {
	case src.Path != "":
		return l.LoadFile(ctx, src.Path, src.Sheet)
	case src.URL != "":
		return l.LoadURL(ctx, src.URL, src.Sheet)
	}
	return Loaded{}, ErrNoSource
}

// LoadPair fetches the sales and mapping sources concurrently. A mapping that
// fails to load is logged and dropped so the sales analysis still runs.
func (l *Loader) LoadPair(ctx context.Context, salesSrc, mappingSrc Source) (Loaded, *Loaded, error) {
	var salesOut Loaded
	var mappingOut *Loaded

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := l.LoadSource(gctx, salesSrc)
		if err != nil {
			return err
		}
		salesOut = res
		return nil
	})
	if !mappingSrc.IsZero() {
		g.Go(func() error {
			res, err := l.LoadSource(gctx, mappingSrc)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					l.Logger.Warn().Err(err).Str("path", mappingSrc.Path).Str("url", mappingSrc.URL).Msg("mapping source unavailable; continuing without it")
				}
				return nil
			}
			mappingOut = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Loaded{}, nil, err
	}
	return salesOut, mappingOut, nil
}

func (l *Loader) readCapped(r io.Reader) ([]byte, error) {
	limit := l.Limits.MaxFileBytes
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("ingest: read: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

func (l *Loader) decode(name, origin string, data []byte, sheet string) (Loaded, error) {
	t, format, warns, err := ParseBytes(name, data, sheet)
	if err != nil {
		return Loaded{}, err
	}
	if l.Limits.MaxRows > 0 && t.Len() > l.Limits.MaxRows {
		return Loaded{}, fmt.Errorf("%w: %d rows exceeds %d", ErrTooManyRows, t.Len(), l.Limits.MaxRows)
	}
	out := Loaded{
		Table:       t,
		Format:      format,
		Origin:      origin,
		Fingerprint: fingerprint(data, format, sheet),
		Bytes:       int64(len(data)),
		Warnings:    warns,
	}
	l.Logger.Debug().Str("origin", origin).Str("format", string(format)).Int("rows", t.Len()).Int("columns", len(t.Columns)).Int("warnings", len(warns)).Msg("source decoded")
	return out, nil
}

// fingerprint identifies decoded content. Workbooks include the requested
// sheet so two sheets of one file never share a dataset or cached report.
func fingerprint(data []byte, format Format, sheet string) string {
	h := sha256.New()
	h.Write(data)
	if format == FormatXLSX {
		h.Write([]byte{0})
		h.Write([]byte(sheet))
	}
	return hex.EncodeToString(h.Sum(nil))
}
