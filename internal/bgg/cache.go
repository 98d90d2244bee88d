package bgg

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/shared"
)

// FetchFunc produces a raw document on a cache miss.
type FetchFunc func(ctx context.Context) (string, error)

// ResponseCache is a disk-backed cache of raw /thing responses keyed by
// (id, record type).
//
// Reads are best-effort: an unreadable cache file falls through to the fetch.
// Writes are best-effort too; a failed write is logged and swallowed so the
// current operation never depends on the cache being writable.
type ResponseCache struct {
	dir       string
	skipReads bool
	logger    *log.Logger
}

// CacheOptions configures a ResponseCache.
type CacheOptions struct {
	// SkipReads forces a refresh: lookups ignore existing cache files but
	// still write the fetched result back.
	SkipReads bool
}

// NewResponseCache creates a cache rooted at the configured cache directory.
func NewResponseCache(cfg *shared.Config, opts CacheOptions, logger *log.Logger) *ResponseCache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &ResponseCache{
		dir:       cfg.CachePath("bgg_get"),
		skipReads: opts.SkipReads,
		logger:    logger,
	}
}

// Path returns the deterministic cache file path for (id, type).
func (c *ResponseCache) Path(bggID int, thingType ThingType) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d.%s.xml", bggID, thingType.Suffix()))
}

// GetOrFetch returns the cached document for (id, type), calling fetch on a miss.
func (c *ResponseCache) GetOrFetch(ctx context.Context, bggID int, thingType ThingType, fetch FetchFunc) (string, error) {
	path := c.Path(bggID, thingType)

	if !c.skipReads {
		cached, err := os.ReadFile(path)
		if err == nil && len(cached) > 0 {
			return string(cached), nil
		}
		if err != nil && !os.IsNotExist(err) {
			c.logger.Debug("failed to read cache file", "path", path, "err", err)
		}
	}

	doc, err := fetch(ctx)
	if err != nil {
		return "", err
	}

	if err := c.store(path, doc); err != nil {
		c.logger.Warn("failed to write cache file", "path", path, "err", err)
	}

	return doc, nil
}

func (c *ResponseCache) store(path, doc string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// Pretty-printed for manual inspection; readers must accept both forms.
	return os.WriteFile(path, []byte(FormatXML(doc)), 0644)
}

// FormatXML re-indents an XML document for readability.
//
// Returns the input unchanged when it cannot be formatted; formatting is a
// convenience, never a requirement.
func FormatXML(doc string) string {
	decoder := xml.NewDecoder(strings.NewReader(doc))

	var buf bytes.Buffer
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return doc
		}

		if data, ok := token.(xml.CharData); ok {
			if len(bytes.TrimSpace(data)) == 0 {
				continue
			}
		}

		if err := encoder.EncodeToken(token); err != nil {
			return doc
		}
	}

	if err := encoder.Flush(); err != nil {
		return doc
	}

	return buf.String()
}
