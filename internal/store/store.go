// package store persists the generated game collection as flat files.
//
// One in-memory collection backs four outputs written together on every
// save: the primary game list, the extended metadata list, a content hash
// descriptor for downstream cache busting, and a trimmed init snapshot.
// Derived fields are recomputed wholesale from the full collection during
// save, never patched incrementally.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/goccy/go-json"
)

// Store is the persisted collection of generated game records.
//
// The backing files are read once on Load and written once per Save; the
// store is the only writer of those files. Not safe for concurrent runs
// against the same files.
type Store struct {
	cfg      *shared.Config
	games    map[int]models.Game
	extended map[int]models.ExtendedGame
	index    *Index
	logger   *log.Logger

	// now is injectable so tests control AddedDate assignment.
	now func() time.Time
}

type hashDescriptor struct {
	Games string `json:"games"`
}

// initGame is a trimmed record for the init snapshot. Its "new" flag is
// recency-derived, unlike the persisted record's master-driven flag.
type initGame struct {
	BggID       int    `json:"bggId"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	IsNew       bool   `json:"new"`
	Thumbnail   string `json:"thumbnail"`
	ThumbWidth  int    `json:"thumbWidth,omitempty"`
	ThumbHeight int    `json:"thumbHeight,omitempty"`
	Blurhash    string `json:"blurhash,omitempty"`
}

type initSnapshot struct {
	Count int        `json:"count"`
	Sale  bool       `json:"sale"`
	Games []initGame `json:"games"`
}

// Load reads the collection files, defaulting to an empty collection when
// they do not exist yet.
func Load(cfg *shared.Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var games []models.Game
	if err := loadJSON(cfg.GamesFile(), &games); err != nil {
		return nil, err
	}

	var extended []models.ExtendedGame
	if err := loadJSON(cfg.ExtendedFile(), &extended); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:      cfg,
		games:    make(map[int]models.Game, len(games)),
		extended: make(map[int]models.ExtendedGame, len(extended)),
		logger:   logger,
		now:      time.Now,
	}

	for _, game := range games {
		s.games[game.BggID] = game
	}
	for _, data := range extended {
		s.extended[data.BggID] = data
	}

	return s, nil
}

// Games returns the collection sorted by id.
func (s *Store) Games() []models.Game {
	games := make([]models.Game, 0, len(s.games))
	for _, game := range s.games {
		games = append(games, game)
	}
	sort.Slice(games, func(a, b int) bool { return games[a].BggID < games[b].BggID })
	return games
}

// Count returns the number of games in the collection.
func (s *Store) Count() int {
	return len(s.games)
}

// ExpansionCount returns the total number of expansion records.
func (s *Store) ExpansionCount() int {
	count := 0
	for _, game := range s.games {
		count += len(game.Expansions)
	}
	return count
}

// Has reports whether the collection contains the id.
func (s *Store) Has(bggID int) bool {
	_, ok := s.games[bggID]
	return ok
}

// AllIDs returns every game id, sorted.
func (s *Store) AllIDs() []int {
	ids := make([]int, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Upsert inserts or replaces a game. First insertion records the added date;
// updates preserve it.
func (s *Store) Upsert(game models.Game) {
	data, exists := s.extended[game.BggID]
	if !exists {
		data = models.ExtendedGame{BggID: game.BggID, AddedDate: s.now().Unix()}
	}
	data.VersionID = game.VersionID

	s.games[game.BggID] = game
	s.extended[game.BggID] = data
	s.index = nil
}

// Remove deletes a game and its extended metadata. Returns false when the id
// is not in the collection.
func (s *Store) Remove(bggID int) bool {
	if _, ok := s.games[bggID]; !ok {
		return false
	}
	delete(s.games, bggID)
	delete(s.extended, bggID)
	s.index = nil
	return true
}

// Replace swaps the whole collection for list, preserving added dates of ids
// that survive and dropping metadata of ids that do not.
func (s *Store) Replace(list []models.Game) {
	seen := map[int]bool{}
	for _, game := range list {
		seen[game.BggID] = true
		s.Upsert(game)
	}

	for _, id := range s.AllIDs() {
		if !seen[id] {
			s.Remove(id)
		}
	}
}

// Search fuzzy-matches the collection by name, subtitle and edition title.
func (s *Store) Search(query string) []models.Game {
	if s.index == nil {
		s.index = BuildIndex(s.Games())
	}
	return s.index.Query(query)
}

// Save recomputes all derived fields from the full collection and writes the
// four output files in one pass. The outputs are only ever produced together
// so they cannot drift apart.
func (s *Store) Save() error {
	s.updateGeneratedFields()

	games := s.Games()
	gamesData, err := json.MarshalIndent(games, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize game data: %w", err)
	}
	if err := writeFile(s.cfg.GamesFile(), gamesData); err != nil {
		return err
	}

	extended := make([]models.ExtendedGame, 0, len(s.extended))
	for _, data := range s.extended {
		extended = append(extended, data)
	}
	sort.Slice(extended, func(a, b int) bool { return extended[a].BggID < extended[b].BggID })
	if err := saveJSON(s.cfg.ExtendedFile(), extended); err != nil {
		return err
	}

	digest := sha256.Sum256(gamesData)
	if err := saveJSON(s.cfg.HashFile(), hashDescriptor{Games: hex.EncodeToString(digest[:])}); err != nil {
		return err
	}

	return saveJSON(s.cfg.InitFile(), s.buildInitSnapshot(games))
}

// updateGeneratedFields recomputes slugs. The "new" flag on the record is
// master-driven and persisted as-is; the recency-derived flag lives only on
// the init snapshot.
func (s *Store) updateGeneratedFields() {
	for id, game := range s.games {
		game.Slug = shared.Slugify(game.Name)
		s.games[id] = game
	}
	s.index = nil
}

// recentIDs returns the ids of the most-recently-added group of size
// data.new_count; ties at the boundary are all included.
func (s *Store) recentIDs() map[int]bool {
	recent := make([]models.ExtendedGame, 0, len(s.extended))
	for _, data := range s.extended {
		if data.AddedDate > 0 {
			recent = append(recent, data)
		}
	}

	newest := topGroup(recent, s.cfg.Data.NewCount, func(a, b models.ExtendedGame) bool {
		return a.AddedDate > b.AddedDate
	})

	ids := map[int]bool{}
	for _, data := range newest {
		ids[data.BggID] = true
	}
	return ids
}

// buildInitSnapshot trims the most recently added games down to the fields a
// first paint needs.
func (s *Store) buildInitSnapshot(games []models.Game) initSnapshot {
	sale := false
	for _, game := range games {
		if game.Sale != "" {
			sale = true
			break
		}
	}

	byRecency := make([]models.Game, len(games))
	copy(byRecency, games)
	sort.SliceStable(byRecency, func(a, b int) bool {
		return s.extended[byRecency[a].BggID].AddedDate > s.extended[byRecency[b].BggID].AddedDate
	})

	count := s.cfg.Data.InitCount
	if count > len(byRecency) {
		count = len(byRecency)
	}

	newIDs := s.recentIDs()
	trimmed := make([]initGame, 0, count)
	for _, game := range byRecency[:count] {
		trimmed = append(trimmed, initGame{
			BggID:       game.BggID,
			Name:        game.Name,
			Slug:        game.Slug,
			IsNew:       newIDs[game.BggID],
			Thumbnail:   game.Thumbnail,
			ThumbWidth:  game.ThumbWidth,
			ThumbHeight: game.ThumbHeight,
			Blurhash:    game.Blurhash,
		})
	}

	return initSnapshot{Count: len(games), Sale: sale, Games: trimmed}
}

// topGroup returns the first count items under less-ordering, extended by any
// items comparing equal to the last included one.
func topGroup[T any](items []T, count int, less func(a, b T) bool) []T {
	if len(items) <= count {
		return items
	}

	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool { return less(sorted[a], sorted[b]) })

	end := count
	for end < len(sorted) && !less(sorted[end-1], sorted[end]) && !less(sorted[end], sorted[end-1]) {
		end++
	}

	return sorted[:end]
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load data from %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize data for %s: %w", path, err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save data to %s: %w", path, err)
	}
	return nil
}
