package models

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/shelf/internal/shared"
)

// MasterExpansion is a hand-maintained expansion entry under a master game.
type MasterExpansion struct {
	Name  string `toml:"name" validate:"required"`
	BggID int    `toml:"bgg_id" validate:"gte=0"`
	Skip  bool   `toml:"skip"`
}

// MasterGame is a hand-maintained entry in the master list.
//
// BggID is optional; entries without one are resolved by exact name lookup.
type MasterGame struct {
	Name              string            `toml:"name" validate:"required"`
	BggID             int               `toml:"bgg_id" validate:"gte=0"`
	Favorite          bool              `toml:"favorite"`
	SecondaryFavorite bool              `toml:"secondary_favorite"`
	IsNew             bool              `toml:"new"`
	VersionID         int               `toml:"version" validate:"gte=0"`
	VersionName       string            `toml:"version_name"`
	Skip              bool              `toml:"skip"`
	Expansions        []MasterExpansion `toml:"expansion" validate:"dive"`
}

// MasterList is the parsed master list document.
type MasterList struct {
	Games []MasterGame `toml:"game" validate:"dive"`

	// SkippedGames and SkippedExpansions count entries removed by the skip
	// filter, for status reporting.
	SkippedGames      int `toml:"-"`
	SkippedExpansions int `toml:"-"`
}

// ExpansionCount returns the total number of expansion entries across all games.
func (m *MasterList) ExpansionCount() int {
	count := 0
	for _, game := range m.Games {
		count += len(game.Expansions)
	}
	return count
}

// LoadMasterList reads, validates and filters the master list at path.
//
// Entries with skip = true (games and expansions) are removed here, before any
// comparison runs; a skipped game is neither added nor reported as removed.
func LoadMasterList(path string) (*MasterList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read master list %s: %w", path, err)
	}

	var list MasterList
	if err := toml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse master list %s: %w", path, err)
	}

	if violations := shared.Validate(&list); len(violations) > 0 {
		return nil, fmt.Errorf("%w: master list %s: %s", shared.ErrInvalidInput, path, shared.FormatViolations(violations))
	}

	filtered := make([]MasterGame, 0, len(list.Games))
	for _, game := range list.Games {
		if game.Skip {
			list.SkippedGames++
			continue
		}

		expansions := make([]MasterExpansion, 0, len(game.Expansions))
		for _, expansion := range game.Expansions {
			if expansion.Skip {
				list.SkippedExpansions++
				continue
			}
			expansions = append(expansions, expansion)
		}

		game.Expansions = expansions
		filtered = append(filtered, game)
	}

	list.Games = filtered
	return &list, nil
}
