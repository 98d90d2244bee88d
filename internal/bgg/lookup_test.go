package bgg

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/shelf/internal/shared"
	shelftest "github.com/desertthunder/shelf/internal/testing"
)

func lookupFixture(t *testing.T, exchanges ...shelftest.Exchange) (*Lookup, *shelftest.SequencedRoundTripper, *shared.Config) {
	t.Helper()

	cfg := shared.DefaultConfig()
	cfg.Cache.Dir = t.TempDir()

	transport := shelftest.NewSequencedRoundTripper(exchanges...)
	client, _ := newTestClient(transport, 0)
	cache := NewResponseCache(cfg, CacheOptions{}, nil)

	return NewLookup(cfg, client, cache, nil), transport, cfg
}

func primeCache(t *testing.T, cfg *shared.Config, bggID int, thingType ThingType, doc string) {
	t.Helper()

	if err := os.MkdirAll(cfg.CachePath("bgg_get"), 0755); err != nil {
		t.Fatal(err)
	}

	path := NewResponseCache(cfg, CacheOptions{}, nil).Path(bggID, thingType)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveID(t *testing.T) {
	ctx := context.Background()

	t.Run("ExactMatchResolvesAndPersists", func(t *testing.T) {
		lookup, transport, cfg := lookupFixture(t,
			shelftest.Exchange{Status: http.StatusOK, Body: searchDoc},
		)

		id, err := lookup.ResolveID(ctx, "Catan")
		if err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}

		if id != 13 {
			t.Errorf("expected id 13, got %d", id)
		}

		// second resolve hits the in-memory cache
		if _, err := lookup.ResolveID(ctx, "Catan"); err != nil {
			t.Fatalf("cached resolve failed: %v", err)
		}

		if transport.Calls() != 1 {
			t.Errorf("expected one search request, got %d", transport.Calls())
		}

		shelftest.AssertFileExists(t, cfg.BggIDFile())

		// a fresh instance reads the persisted file, no network needed
		fresh := NewLookup(cfg, nil, nil, nil)

		id, err = fresh.ResolveID(ctx, "Catan")
		if err != nil {
			t.Fatalf("persisted resolve failed: %v", err)
		}

		if id != 13 {
			t.Errorf("expected persisted id 13, got %d", id)
		}
	})

	t.Run("NoResults", func(t *testing.T) {
		lookup, _, _ := lookupFixture(t,
			shelftest.Exchange{Status: http.StatusOK, Body: emptyDoc},
		)

		_, err := lookup.ResolveID(ctx, "Nonexistent Game")

		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) {
			t.Fatalf("expected LookupError, got %v", err)
		}

		if lookupErr.Reason != NoResults || len(lookupErr.Matches) != 0 {
			t.Errorf("unexpected lookup error %+v", lookupErr)
		}
	})

	t.Run("NoExactMatchCarriesCandidates", func(t *testing.T) {
		lookup, _, _ := lookupFixture(t,
			shelftest.Exchange{Status: http.StatusOK, Body: searchDoc},
		)

		_, err := lookup.ResolveID(ctx, "Catan Junior")

		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) {
			t.Fatalf("expected LookupError, got %v", err)
		}

		if lookupErr.Reason != NoExactMatch {
			t.Errorf("expected NoExactMatch, got %s", lookupErr.Reason)
		}

		if len(lookupErr.Matches) != 3 {
			t.Errorf("expected all candidates, got %d", len(lookupErr.Matches))
		}
	})

	t.Run("MultipleExactMatches", func(t *testing.T) {
		lookup, _, _ := lookupFixture(t,
			shelftest.Exchange{Status: http.StatusOK, Body: `<items>
  <item type="boardgame" id="1"><name type="primary" value="Twin"/></item>
  <item type="boardgame" id="2"><name type="primary" value="Twin"/></item>
</items>`},
		)

		_, err := lookup.ResolveID(ctx, "Twin")

		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) {
			t.Fatalf("expected LookupError, got %v", err)
		}

		if lookupErr.Reason != MultipleExactMatches || len(lookupErr.Matches) != 2 {
			t.Errorf("unexpected lookup error %+v", lookupErr)
		}
	})

	t.Run("FailedResolutionIsNotCached", func(t *testing.T) {
		lookup, transport, _ := lookupFixture(t,
			shelftest.Exchange{Status: http.StatusOK, Body: emptyDoc},
			shelftest.Exchange{Status: http.StatusOK, Body: searchDoc},
		)

		if _, err := lookup.ResolveID(ctx, "Catan: Junior"); err == nil {
			t.Fatal("expected first resolve to fail")
		}

		id, err := lookup.ResolveID(ctx, "Catan: Junior")
		if err != nil {
			t.Fatalf("second resolve failed: %v", err)
		}

		if id != 27710 {
			t.Errorf("expected id 27710, got %d", id)
		}

		if transport.Calls() != 2 {
			t.Errorf("expected two search requests, got %d", transport.Calls())
		}
	})
}

func TestForget(t *testing.T) {
	ctx := context.Background()

	lookup, _, cfg := lookupFixture(t,
		shelftest.Exchange{Status: http.StatusOK, Body: searchDoc},
	)

	if _, err := lookup.ResolveID(ctx, "Catan: Junior"); err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}

	dropped, err := lookup.Forget("Catan: Junior")
	if err != nil || !dropped {
		t.Fatalf("expected drop, got %v %v", dropped, err)
	}

	dropped, err = lookup.Forget("Catan: Junior")
	if err != nil || dropped {
		t.Fatalf("second drop should be a no-op, got %v %v", dropped, err)
	}

	fresh := NewLookup(cfg, nil, nil, nil)

	ids, err := fresh.CachedIDs()
	if err != nil {
		t.Fatalf("failed to read cached ids: %v", err)
	}

	if len(ids) != 0 {
		t.Errorf("drop should persist, got %v", ids)
	}
}

func TestLookupGame(t *testing.T) {
	ctx := context.Background()

	t.Run("ParsesCachedRecord", func(t *testing.T) {
		lookup, transport, cfg := lookupFixture(t)
		primeCache(t, cfg, 13, TypeBoardGame, gameDoc)

		game, err := lookup.LookupGame(ctx, 13, VersionInfo{})
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}

		if game.Name != "Catan" || game.ImageURL != "https://img.test/13.jpg" {
			t.Errorf("unexpected game %+v", game)
		}

		if transport.Calls() != 0 {
			t.Errorf("cached lookup must not hit the network, got %d requests", transport.Calls())
		}
	})

	t.Run("MergesVersionByID", func(t *testing.T) {
		lookup, _, cfg := lookupFixture(t)
		primeCache(t, cfg, 13, TypeBoardGame, gameDoc)

		game, err := lookup.LookupGame(ctx, 13, VersionInfo{ID: 999})
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}

		if game.ImageURL != "https://img.test/999.jpg" {
			t.Errorf("version image should win, got %q", game.ImageURL)
		}

		if game.Publisher != "Catan Studio" || game.Year != "2020" {
			t.Errorf("version metadata should win, got %q (%s)", game.Publisher, game.Year)
		}

		if len(game.Artists) != 1 || game.Artists[0] != "Pau Morgan" {
			t.Errorf("version artists should win, got %v", game.Artists)
		}
	})

	t.Run("MergesVersionByName", func(t *testing.T) {
		lookup, _, cfg := lookupFixture(t)
		primeCache(t, cfg, 13, TypeBoardGame, gameDoc)

		game, err := lookup.LookupGame(ctx, 13, VersionInfo{Name: "Catan: Travel Edition"})
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}

		// sparse version carries no artwork, so the base fields survive
		if game.ImageURL != "https://img.test/13.jpg" {
			t.Errorf("base image should survive an empty version field, got %q", game.ImageURL)
		}
	})

	t.Run("UnknownVersionFails", func(t *testing.T) {
		lookup, _, cfg := lookupFixture(t)
		primeCache(t, cfg, 13, TypeBoardGame, gameDoc)

		if _, err := lookup.LookupGame(ctx, 13, VersionInfo{ID: 424242}); err == nil {
			t.Error("expected error for unknown version")
		}
	})

	t.Run("UnknownIDFails", func(t *testing.T) {
		lookup, _, cfg := lookupFixture(t)
		primeCache(t, cfg, 404, TypeBoardGame, emptyDoc)

		_, err := lookup.LookupGame(ctx, 404, VersionInfo{})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLookupExpansion(t *testing.T) {
	ctx := context.Background()

	t.Run("ParsesCachedRecord", func(t *testing.T) {
		lookup, _, cfg := lookupFixture(t)
		primeCache(t, cfg, 325, TypeExpansion, expansionDoc)

		expansion, err := lookup.LookupExpansion(ctx, 325)
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}

		if expansion.Name != "Catan: Seafarers" {
			t.Errorf("unexpected expansion %+v", expansion)
		}
	})

	t.Run("FallsBackToBoardGameType", func(t *testing.T) {
		lookup, _, cfg := lookupFixture(t)

		// catalogued upstream as a plain board game, empty under the expansion type
		primeCache(t, cfg, 822, TypeExpansion, emptyDoc)
		primeCache(t, cfg, 822, TypeBoardGame, expansionDoc)

		expansion, err := lookup.LookupExpansion(ctx, 822)
		if err != nil {
			t.Fatalf("fallback lookup failed: %v", err)
		}

		if expansion.Name != "Catan: Seafarers" {
			t.Errorf("unexpected expansion %+v", expansion)
		}
	})

	t.Run("UnknownUnderBothTypes", func(t *testing.T) {
		lookup, _, cfg := lookupFixture(t)
		primeCache(t, cfg, 404, TypeExpansion, emptyDoc)
		primeCache(t, cfg, 404, TypeBoardGame, emptyDoc)

		_, err := lookup.LookupExpansion(ctx, 404)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
