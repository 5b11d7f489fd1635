package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "datez/internal/log"
	"datez/internal/model"
)

// Source is one ICS calendar whose events are imported at startup.
type Source struct {
	// ID is used in log lines and error messages.
	ID string
	// URL is an http(s) URL, a file:// URL or a plain file path.
	URL string
}

// cacheMeta holds the validators of the last 200 response for one URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Fetcher reads ICS sources once, at startup. Remote sources are requested
// conditionally (ETag / Last-Modified) against a disk cache so unchanged
// calendars are not downloaded again. A failed request is an error even
// when a cached copy exists: datez never starts from a stale calendar.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	loc      *time.Location
}

// NewFetcher creates a Fetcher caching under cacheDir. An empty cacheDir
// disables the disk cache. loc is passed on to ParseICS.
func NewFetcher(cacheDir string, loc *time.Location) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
		loc:      loc,
	}
}

// LoadAll fetches and parses every source. The first failing source aborts
// the load.
func (f *Fetcher) LoadAll(ctx context.Context, sources []Source) ([]model.DateSpec, error) {
	var specs []model.DateSpec
	for _, src := range sources {
		body, err := f.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		parsed, err := ParseICS(src, body, f.loc)
		if err != nil {
			return nil, err
		}
		specs = append(specs, parsed...)
	}
	return specs, nil
}

// Fetch returns the ICS payload of src.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("%w: ics source %q has no url", model.ErrIO, src.ID)
	}

	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(src.URL, "http://") || strings.HasPrefix(src.URL, "https://") {
		body, err = f.fetchHTTP(ctx, src)
	} else {
		body, err = os.ReadFile(strings.TrimPrefix(src.URL, "file://"))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: ics source %q: %w", model.ErrIO, src.ID, err)
	}
	return body, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}

	cache := f.cacheFor(src.URL)
	meta, cached := cache.load()
	if cached {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if err := cache.store(resp.Header, body); err != nil {
			appLog.Warn("ics cache save failed", "id", src.ID, "url", redactURL(src.URL), "err", err)
		}
		appLog.Info("ics fetched", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return body, nil

	case http.StatusNotModified:
		if !cached {
			return nil, errors.New("304 Not Modified without a cached body")
		}
		body, err := cache.body()
		if err != nil {
			return nil, err
		}
		appLog.Info("ics not modified", "id", src.ID, "url", redactURL(src.URL))
		return body, nil

	default:
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
}

// diskCache is the cache directory of one URL. The zero value is a
// disabled cache.
type diskCache struct {
	url string
	dir string
}

func (f *Fetcher) cacheFor(url string) diskCache {
	if f.cacheDir == "" {
		return diskCache{url: url}
	}
	sum := sha256.Sum256([]byte(url))
	return diskCache{url: url, dir: filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))}
}

// load returns the stored validators. ok is false when the cache is
// disabled, empty or unreadable; a broken cache just means a full download.
func (c diskCache) load() (meta cacheMeta, ok bool) {
	if c.dir == "" {
		return cacheMeta{}, false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, "meta.json"))
	if err != nil {
		return cacheMeta{}, false
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.URL != c.url {
		return cacheMeta{}, false
	}
	if _, err := os.Stat(filepath.Join(c.dir, "body.ics")); err != nil {
		return cacheMeta{}, false
	}
	return meta, true
}

func (c diskCache) body() ([]byte, error) {
	return os.ReadFile(filepath.Join(c.dir, "body.ics"))
}

func (c diskCache) store(h http.Header, body []byte) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return err
	}
	// Body first, so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(c.dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cacheMeta{
		URL:          c.url,
		ETag:         h.Get("ETag"),
		LastModified: h.Get("Last-Modified"),
		FetchedAt:    time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "meta.json"), data, 0o600)
}

// redactURL hides the path and query of a URL, which often carry tokens
// for private calendars.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return u
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
