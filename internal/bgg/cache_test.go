package bgg

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/desertthunder/shelf/internal/shared"
)

func cacheConfig(t *testing.T) *shared.Config {
	t.Helper()

	cfg := shared.DefaultConfig()
	cfg.Cache.Dir = t.TempDir()

	return cfg
}

func TestResponseCache(t *testing.T) {
	ctx := context.Background()

	t.Run("HitShortCircuitsFetch", func(t *testing.T) {
		cfg := cacheConfig(t)
		cache := NewResponseCache(cfg, CacheOptions{}, nil)

		path := cache.Path(13, TypeBoardGame)
		if err := os.MkdirAll(cfg.CachePath("bgg_get"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("<items><item id=\"13\"/></items>"), 0644); err != nil {
			t.Fatal(err)
		}

		doc, err := cache.GetOrFetch(ctx, 13, TypeBoardGame, func(ctx context.Context) (string, error) {
			t.Fatal("fetch must not run on a cache hit")
			return "", nil
		})
		if err != nil {
			t.Fatalf("cache hit failed: %v", err)
		}

		if !strings.Contains(doc, "13") {
			t.Errorf("unexpected cached doc %q", doc)
		}
	})

	t.Run("MissFetchesAndStoresFormatted", func(t *testing.T) {
		cfg := cacheConfig(t)
		cache := NewResponseCache(cfg, CacheOptions{}, nil)

		fetched := 0
		doc, err := cache.GetOrFetch(ctx, 325, TypeExpansion, func(ctx context.Context) (string, error) {
			fetched++
			return "<items><item id=\"325\"><name value=\"Seafarers\"/></item></items>", nil
		})
		if err != nil {
			t.Fatalf("cache miss failed: %v", err)
		}

		if fetched != 1 {
			t.Errorf("expected one fetch, got %d", fetched)
		}

		if doc == "" {
			t.Fatal("expected fetched doc")
		}

		stored, err := os.ReadFile(cache.Path(325, TypeExpansion))
		if err != nil {
			t.Fatalf("cache file missing: %v", err)
		}

		if !strings.Contains(string(stored), "\n") {
			t.Errorf("stored doc should be pretty-printed, got %q", stored)
		}

		// second call now hits disk
		_, err = cache.GetOrFetch(ctx, 325, TypeExpansion, func(ctx context.Context) (string, error) {
			t.Fatal("fetch must not run after the result was stored")
			return "", nil
		})
		if err != nil {
			t.Fatalf("stored hit failed: %v", err)
		}
	})

	t.Run("SkipReadsForcesRefresh", func(t *testing.T) {
		cfg := cacheConfig(t)
		cache := NewResponseCache(cfg, CacheOptions{SkipReads: true}, nil)

		path := cache.Path(13, TypeBoardGame)
		if err := os.MkdirAll(cfg.CachePath("bgg_get"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("<items><item id=\"13\" stale=\"yes\"/></items>"), 0644); err != nil {
			t.Fatal(err)
		}

		doc, err := cache.GetOrFetch(ctx, 13, TypeBoardGame, func(ctx context.Context) (string, error) {
			return "<items><item id=\"13\" fresh=\"yes\"/></items>", nil
		})
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}

		if !strings.Contains(doc, "fresh") {
			t.Errorf("expected fresh doc, got %q", doc)
		}

		stored, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}

		if !strings.Contains(string(stored), "fresh") {
			t.Errorf("refresh should overwrite the cache file, got %q", stored)
		}
	})

	t.Run("TypeSuffixKeepsRecordsApart", func(t *testing.T) {
		cfg := cacheConfig(t)
		cache := NewResponseCache(cfg, CacheOptions{}, nil)

		if cache.Path(13, TypeBoardGame) == cache.Path(13, TypeExpansion) {
			t.Error("boardgame and expansion records must use distinct files")
		}
	})
}

func TestFormatXML(t *testing.T) {
	t.Run("Indents", func(t *testing.T) {
		got := FormatXML("<a><b>x</b></a>")
		if !strings.Contains(got, "\n  <b>") {
			t.Errorf("expected indented output, got %q", got)
		}
	})

	t.Run("ReturnsInputWhenMalformed", func(t *testing.T) {
		in := "<a><b>"
		if got := FormatXML(in); got != in {
			t.Errorf("malformed input should pass through, got %q", got)
		}
	})
}
