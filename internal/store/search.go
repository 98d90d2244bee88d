package store

import (
	"sort"
	"strings"

	"github.com/desertthunder/shelf/internal/models"
	"github.com/sahilm/fuzzy"
)

// Search weights: a hit on the primary name counts double a hit on the
// subtitle or the edition title.
const (
	nameWeight     = 2
	subTitleWeight = 1
	editionWeight  = 1
)

// Index is a prebuilt fuzzy search index over a game list.
//
// Building and querying are pure functions of the record list; the index
// holds no reference to the store and must be rebuilt explicitly after the
// backing collection changes.
type Index struct {
	games     []models.Game
	names     []string
	subTitles []string
	editions  []string
}

// BuildIndex constructs a search index for games.
//
// The subtitle is the portion of the name after the first ": "; the edition
// title is the version name. Both are empty for most games, which simply
// makes them unmatchable on those fields.
func BuildIndex(games []models.Game) *Index {
	index := &Index{
		games:     games,
		names:     make([]string, len(games)),
		subTitles: make([]string, len(games)),
		editions:  make([]string, len(games)),
	}

	for i, game := range games {
		index.names[i] = game.Name
		if _, subTitle, found := strings.Cut(game.Name, ": "); found {
			index.subTitles[i] = subTitle
		}
		index.editions[i] = game.VersionName
	}

	return index
}

// Query returns the games matching text, best match first.
func (ix *Index) Query(text string) []models.Game {
	if text == "" {
		return nil
	}

	scores := map[int]int{}
	accumulate := func(data []string, weight int) {
		for _, match := range fuzzy.Find(text, data) {
			scores[match.Index] += match.Score * weight
		}
	}

	accumulate(ix.names, nameWeight)
	accumulate(ix.subTitles, subTitleWeight)
	accumulate(ix.editions, editionWeight)

	indexes := make([]int, 0, len(scores))
	for i := range scores {
		indexes = append(indexes, i)
	}

	sort.Slice(indexes, func(a, b int) bool {
		if scores[indexes[a]] != scores[indexes[b]] {
			return scores[indexes[a]] > scores[indexes[b]]
		}
		return ix.games[indexes[a]].Name < ix.games[indexes[b]].Name
	})

	matches := make([]models.Game, 0, len(indexes))
	for _, i := range indexes {
		matches = append(matches, ix.games[i])
	}

	return matches
}
