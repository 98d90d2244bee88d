package bgg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/goccy/go-json"
)

// LookupReason classifies why a name failed to resolve to a BGG id.
type LookupReason int

const (
	NoResults LookupReason = iota
	NoExactMatch
	MultipleExactMatches
)

func (r LookupReason) String() string {
	switch r {
	case NoResults:
		return "no results"
	case NoExactMatch:
		return "no exact matches"
	case MultipleExactMatches:
		return "multiple exact matches"
	default:
		return "unknown"
	}
}

// LookupError reports an unresolved name. Matches carries all raw candidates
// so an operator can disambiguate manually, e.g. by adding an explicit bgg_id
// to the master list entry.
type LookupError struct {
	Name    string
	Reason  LookupReason
	Matches []SearchMatch
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("bgg id lookup for %q failed with %s", e.Name, e.Reason)
}

// VersionInfo selects one nested version record by id or display name.
type VersionInfo struct {
	ID   int
	Name string
}

func (v VersionInfo) empty() bool {
	return v.ID == 0 && v.Name == ""
}

// Lookup resolves names to ids and ids to full records, on top of the raw
// client, the response cache and a persistent name-to-id map.
//
// The id map is loaded once per process, mutated in memory and flushed after
// every new resolution so partial progress survives a crash mid-batch. Cached
// mappings are never invalidated automatically; identity drift requires a
// manual cache edit (see Forget).
type Lookup struct {
	client *Client
	cache  *ResponseCache
	idFile string
	ids    map[string]int
	logger *log.Logger
}

// NewLookup creates a Lookup using the configured id cache file.
func NewLookup(cfg *shared.Config, client *Client, cache *ResponseCache, logger *log.Logger) *Lookup {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Lookup{
		client: client,
		cache:  cache,
		idFile: cfg.BggIDFile(),
		logger: logger,
	}
}

// ResolveID resolves a display name to a BGG id, consulting the persistent
// cache first. Fails with *LookupError when the search is ambiguous or empty.
func (l *Lookup) ResolveID(ctx context.Context, name string) (int, error) {
	if err := l.ensureIDCache(); err != nil {
		return 0, err
	}

	if id, ok := l.ids[name]; ok {
		return id, nil
	}

	id, err := l.resolve(ctx, name)
	if err != nil {
		return 0, err
	}

	l.ids[name] = id
	if err := l.saveIDCache(); err != nil {
		return 0, fmt.Errorf("failed to save id cache: %w", err)
	}

	return id, nil
}

// CachedIDs returns a copy of the resolved name-to-id map.
func (l *Lookup) CachedIDs() (map[string]int, error) {
	if err := l.ensureIDCache(); err != nil {
		return nil, err
	}

	ids := make(map[string]int, len(l.ids))
	for name, id := range l.ids {
		ids[name] = id
	}
	return ids, nil
}

// Forget removes a cached name mapping and persists the change. Returns false
// when the name was not cached.
func (l *Lookup) Forget(name string) (bool, error) {
	if err := l.ensureIDCache(); err != nil {
		return false, err
	}

	if _, ok := l.ids[name]; !ok {
		return false, nil
	}

	delete(l.ids, name)
	if err := l.saveIDCache(); err != nil {
		return false, fmt.Errorf("failed to save id cache: %w", err)
	}

	return true, nil
}

// LookupGame fetches and parses the full game record for id, merging the
// selected version's fields when version info is present.
func (l *Lookup) LookupGame(ctx context.Context, bggID int, version VersionInfo) (*GameDoc, error) {
	doc, err := l.cache.GetOrFetch(ctx, bggID, TypeBoardGame, func(ctx context.Context) (string, error) {
		return l.client.Get(ctx, bggID, GetOptions{WithVersions: true, WithStats: true})
	})
	if err != nil {
		return nil, err
	}

	game, err := ParseGame(doc)
	if err != nil {
		l.logger.Debug("unparseable game document", "bggId", bggID, "doc", doc)
		return nil, fmt.Errorf("failed to parse bgg game %d: %w", bggID, err)
	}
	if game == nil {
		return nil, fmt.Errorf("%w: no game with id %d", shared.ErrNotFound, bggID)
	}

	return mergeVersionInfo(game, version)
}

// LookupExpansion fetches and parses the expansion record for id.
//
// Some expansions are catalogued upstream as plain board games, so a miss
// under the expansion type falls back to the boardgame type.
func (l *Lookup) LookupExpansion(ctx context.Context, bggID int) (*ExpansionDoc, error) {
	for _, thingType := range []ThingType{TypeExpansion, TypeBoardGame} {
		fetchType := thingType
		doc, err := l.cache.GetOrFetch(ctx, bggID, fetchType, func(ctx context.Context) (string, error) {
			return l.client.Get(ctx, bggID, GetOptions{Type: fetchType})
		})
		if err != nil {
			return nil, err
		}

		expansion, err := ParseExpansion(doc)
		if err != nil {
			l.logger.Debug("unparseable expansion document", "bggId", bggID, "type", fetchType, "doc", doc)
			return nil, fmt.Errorf("failed to parse bgg expansion %d as %s: %w", bggID, fetchType, err)
		}
		if expansion != nil {
			return expansion, nil
		}
	}

	return nil, fmt.Errorf("%w: no expansion with id %d", shared.ErrNotFound, bggID)
}

// Search runs a name search and parses the candidate list. Search responses
// are not disk-cached; only /thing responses are.
func (l *Lookup) Search(ctx context.Context, name string) ([]SearchMatch, error) {
	doc, err := l.client.Search(ctx, name)
	if err != nil {
		return nil, err
	}

	matches, err := ParseSearch(doc)
	if err != nil {
		l.logger.Debug("unparseable search document", "name", name, "doc", doc)
		return nil, fmt.Errorf("failed to parse bgg search results: %w", err)
	}

	return matches, nil
}

func (l *Lookup) resolve(ctx context.Context, name string) (int, error) {
	matches, err := l.Search(ctx, name)
	if err != nil {
		return 0, err
	}

	if len(matches) == 0 {
		return 0, &LookupError{Name: name, Reason: NoResults}
	}

	var exact []SearchMatch
	for _, match := range matches {
		if match.Name == name {
			exact = append(exact, match)
		}
	}

	switch len(exact) {
	case 1:
		return exact[0].ID, nil
	case 0:
		return 0, &LookupError{Name: name, Reason: NoExactMatch, Matches: matches}
	default:
		return 0, &LookupError{Name: name, Reason: MultipleExactMatches, Matches: matches}
	}
}

func (l *Lookup) ensureIDCache() error {
	if l.ids != nil {
		return nil
	}

	data, err := os.ReadFile(l.idFile)
	if err != nil {
		if os.IsNotExist(err) {
			l.ids = map[string]int{}
			return nil
		}
		return fmt.Errorf("failed to read id cache %s: %w", l.idFile, err)
	}

	var ids map[string]int
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to parse id cache %s: %w", l.idFile, err)
	}

	l.ids = ids
	return nil
}

func (l *Lookup) saveIDCache() error {
	if err := os.MkdirAll(filepath.Dir(l.idFile), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(l.ids, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(l.idFile, data, 0644)
}

// mergeVersionInfo overlays the non-empty fields of the matching version onto
// a copy of the base record.
func mergeVersionInfo(game *GameDoc, version VersionInfo) (*GameDoc, error) {
	if version.empty() {
		return game, nil
	}

	var matched *VersionDoc
	for i := range game.Versions {
		candidate := &game.Versions[i]
		if (version.ID != 0 && candidate.VersionID == version.ID) ||
			(version.Name != "" && candidate.VersionName == version.Name) {
			matched = candidate
			break
		}
	}

	if matched == nil {
		return nil, fmt.Errorf("unable to find game version %s [%d] for %s", version.Name, version.ID, game.Name)
	}

	merged := *game
	if matched.ImageURL != "" {
		merged.ImageURL = matched.ImageURL
	}
	if matched.ThumbnailURL != "" {
		merged.ThumbnailURL = matched.ThumbnailURL
	}
	if matched.Publisher != "" {
		merged.Publisher = matched.Publisher
	}
	if matched.Year != "" {
		merged.Year = matched.Year
	}
	if len(matched.Artists) > 0 {
		merged.Artists = matched.Artists
	}

	return &merged, nil
}

// SortedNames returns the cached names in stable order, for display.
func SortedNames(ids map[string]int) []string {
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
