package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/bgg"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/shared"
)

// ChangeType classifies a single difference on a modified game.
type ChangeType int

const (
	ModifiedKey ChangeType = iota
	AddedExpansion
	RemovedExpansion
)

func (t ChangeType) String() string {
	switch t {
	case ModifiedKey:
		return "ModifiedKey"
	case AddedExpansion:
		return "AddedExpansion"
	case RemovedExpansion:
		return "RemovedExpansion"
	default:
		return ""
	}
}

// Change is one discrete difference on a modified game: either a tracked
// scalar field (Name is the field name) or an expansion-set delta (Name is
// the expansion's display name).
type Change struct {
	Type ChangeType
	Name string
}

// ExpansionItem pairs a master expansion entry with its resolved id.
type ExpansionItem struct {
	BggID   int
	Details models.MasterExpansion
}

// AddedGame is a master entry with no generated counterpart.
type AddedGame struct {
	BggID      int
	Details    models.MasterGame
	Expansions []ExpansionItem
}

// RemovedGame is a generated record with no master counterpart.
type RemovedGame struct {
	BggID int
	Name  string
}

// ModifiedGame is a record present on both sides with at least one change.
type ModifiedGame struct {
	BggID      int
	Details    models.MasterGame
	Changes    []Change
	Expansions []ExpansionItem
}

// ListChanges is the full reconciliation output.
type ListChanges struct {
	Added    []AddedGame
	Removed  []RemovedGame
	Modified []ModifiedGame
}

// Empty reports whether the diff found nothing to do.
func (c *ListChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// CompareOptions select which change categories to compute.
type CompareOptions struct {
	Added    bool
	Removed  bool
	Modified bool
}

// AllChanges computes every category.
var AllChanges = CompareOptions{Added: true, Removed: true, Modified: true}

// Resolver resolves a display name to a BGG id. Narrowed from [bgg.Lookup]
// so comparisons are testable without the client stack.
type Resolver interface {
	ResolveID(ctx context.Context, name string) (int, error)
}

// trackedField is a scalar field compared between master and generated
// records. The id and the expansion list are deliberately absent: the id is
// the join key and expansion sets are diffed separately.
type trackedField struct {
	name    string
	differs func(master models.MasterGame, data models.Game) bool
}

var trackedFields = []trackedField{
	{"name", func(m models.MasterGame, g models.Game) bool { return m.Name != g.Name }},
	{"favorite", func(m models.MasterGame, g models.Game) bool { return m.Favorite != g.Favorite }},
	{"secondaryFavorite", func(m models.MasterGame, g models.Game) bool { return m.SecondaryFavorite != g.SecondaryFavorite }},
	{"new", func(m models.MasterGame, g models.Game) bool { return m.IsNew != g.IsNew }},
	{"version", func(m models.MasterGame, g models.Game) bool { return m.VersionID != g.VersionID }},
	{"versionName", func(m models.MasterGame, g models.Game) bool { return m.VersionName != g.VersionName }},
}

// isVersionField reports whether a modified scalar requires a metadata re-fetch.
func isVersionField(name string) bool {
	return name == "version" || name == "versionName"
}

// Comparer computes the diff between master list and generated data.
type Comparer struct {
	resolver Resolver
	logger   *log.Logger
}

// NewComparer creates a Comparer using the given id resolver.
func NewComparer(resolver Resolver, logger *log.Logger) *Comparer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Comparer{resolver: resolver, logger: logger}
}

type masterEntry struct {
	game         models.MasterGame
	expansions   []ExpansionItem
	expansionSet map[int]models.MasterExpansion
}

type masterLookup struct {
	ids     []int // insertion order of the master list
	entries map[int]masterEntry
}

type dataLookup struct {
	ids   []int // insertion order of the data list
	games map[int]models.Game
}

// Compare diffs master against data and returns the selected change sets.
//
// Master entries whose id cannot be resolved are logged and excluded from the
// diff; a resolution failure never fails the run. Running Compare twice on the
// same inputs yields the same result.
func (c *Comparer) Compare(ctx context.Context, master *models.MasterList, data []models.Game, opts CompareOptions) (*ListChanges, error) {
	masterIdx, err := c.buildMasterLookup(ctx, master)
	if err != nil {
		return nil, err
	}

	dataIdx := buildDataLookup(data)

	changes := &ListChanges{}
	if opts.Added {
		changes.Added = findAdded(masterIdx, dataIdx)
	}
	if opts.Modified {
		changes.Modified = findModified(masterIdx, dataIdx)
	}
	if opts.Removed {
		changes.Removed = findRemoved(masterIdx, dataIdx)
	}

	return changes, nil
}

func (c *Comparer) buildMasterLookup(ctx context.Context, master *models.MasterList) (*masterLookup, error) {
	lookup := &masterLookup{entries: map[int]masterEntry{}}

	for _, game := range master.Games {
		bggID := game.BggID
		if bggID == 0 {
			resolved, err := c.resolver.ResolveID(ctx, game.Name)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logLookupFailure(game.Name, err)
				continue
			}
			bggID = resolved
		}

		if _, exists := lookup.entries[bggID]; exists {
			c.logger.Error("duplicate game entry", "name", game.Name, "bggId", bggID)
			continue
		}

		entry := masterEntry{game: game, expansionSet: map[int]models.MasterExpansion{}}
		for _, expansion := range game.Expansions {
			expansionID := expansion.BggID
			if expansionID == 0 {
				resolved, err := c.resolver.ResolveID(ctx, expansion.Name)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					c.logLookupFailure(expansion.Name, err)
					continue
				}
				expansionID = resolved
			}

			if _, exists := entry.expansionSet[expansionID]; exists {
				c.logger.Error("duplicate expansion entry", "name", expansion.Name, "bggId", expansionID)
				continue
			}

			entry.expansionSet[expansionID] = expansion
			entry.expansions = append(entry.expansions, ExpansionItem{BggID: expansionID, Details: expansion})
		}

		lookup.ids = append(lookup.ids, bggID)
		lookup.entries[bggID] = entry
	}

	return lookup, nil
}

func (c *Comparer) logLookupFailure(name string, err error) {
	var lookupErr *bgg.LookupError
	if errors.As(err, &lookupErr) {
		c.logger.Warn("unable to lookup bgg id",
			"name", name,
			"reason", lookupErr.Reason.String(),
			"candidates", formatMatches(lookupErr.Matches),
		)
		return
	}

	c.logger.Warn("unable to lookup bgg id", "name", name, "err", err)
}

func formatMatches(matches []bgg.SearchMatch) string {
	if len(matches) == 0 {
		return ""
	}

	parts := make([]string, 0, len(matches))
	for _, match := range matches {
		parts = append(parts, fmt.Sprintf("%s (%s) [%d]", match.Name, match.Year, match.ID))
	}
	return strings.Join(parts, ", ")
}

func buildDataLookup(data []models.Game) *dataLookup {
	lookup := &dataLookup{games: map[int]models.Game{}}
	for _, game := range data {
		if _, exists := lookup.games[game.BggID]; exists {
			continue
		}
		lookup.ids = append(lookup.ids, game.BggID)
		lookup.games[game.BggID] = game
	}
	return lookup
}

func findAdded(master *masterLookup, data *dataLookup) []AddedGame {
	var added []AddedGame
	for _, bggID := range master.ids {
		if _, exists := data.games[bggID]; exists {
			continue
		}

		entry := master.entries[bggID]
		added = append(added, AddedGame{
			BggID:      bggID,
			Details:    entry.game,
			Expansions: entry.expansions,
		})
	}
	return added
}

func findRemoved(master *masterLookup, data *dataLookup) []RemovedGame {
	var removed []RemovedGame
	for _, bggID := range data.ids {
		if _, exists := master.entries[bggID]; exists {
			continue
		}
		removed = append(removed, RemovedGame{BggID: bggID, Name: data.games[bggID].Name})
	}
	return removed
}

func findModified(master *masterLookup, data *dataLookup) []ModifiedGame {
	var modified []ModifiedGame

	for _, bggID := range master.ids {
		dataGame, exists := data.games[bggID]
		if !exists {
			continue
		}

		entry := master.entries[bggID]

		var changes []Change
		for _, field := range trackedFields {
			if field.differs(entry.game, dataGame) {
				changes = append(changes, Change{Type: ModifiedKey, Name: field.name})
			}
		}

		dataExpansions := map[int]models.Expansion{}
		for _, expansion := range dataGame.Expansions {
			dataExpansions[expansion.BggID] = expansion
		}

		for _, expansion := range entry.expansions {
			if _, exists := dataExpansions[expansion.BggID]; !exists {
				changes = append(changes, Change{Type: AddedExpansion, Name: expansion.Details.Name})
			}
		}

		for _, expansion := range dataGame.Expansions {
			if _, exists := entry.expansionSet[expansion.BggID]; !exists {
				changes = append(changes, Change{Type: RemovedExpansion, Name: expansion.Name})
			}
		}

		if len(changes) == 0 {
			continue
		}

		modified = append(modified, ModifiedGame{
			BggID:      bggID,
			Details:    entry.game,
			Changes:    changes,
			Expansions: entry.expansions,
		})
	}

	return modified
}
