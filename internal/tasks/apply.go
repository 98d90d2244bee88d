package tasks

import (
	"context"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/bgg"
	"github.com/desertthunder/shelf/internal/images"
	"github.com/desertthunder/shelf/internal/models"
	"github.com/desertthunder/shelf/internal/shared"
)

// GameLookup fetches full records by id. Narrowed from [bgg.Lookup] so the
// applier is testable without the client stack.
type GameLookup interface {
	LookupGame(ctx context.Context, bggID int, version bgg.VersionInfo) (*bgg.GameDoc, error)
	LookupExpansion(ctx context.Context, bggID int) (*bgg.ExpansionDoc, error)
}

// Applier consumes reconciliation output and converges the in-memory game
// list toward the master list.
//
// Failures are isolated at the per-game boundary: a game that cannot be
// looked up or whose images cannot be built is logged and skipped, leaving it
// for a future run; it is never written partially. The applier only mutates
// the in-memory list — the caller flushes the store once per batch.
type Applier struct {
	lookup  GameLookup
	builder images.Builder
	logger  *log.Logger
}

// NewApplier creates an Applier. Every log line of one Apply run carries the
// same run id.
func NewApplier(lookup GameLookup, builder images.Builder, logger *log.Logger) *Applier {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Applier{
		lookup:  lookup,
		builder: builder,
		logger:  shared.NewRunLogger(logger),
	}
}

// Apply processes all change sets against list and returns the updated list.
// Per-item outcomes stream through progress (may be nil) without blocking.
func (a *Applier) Apply(ctx context.Context, changes *ListChanges, list []models.Game, progress chan<- ProgressUpdate) []models.Game {
	list = a.addGames(ctx, changes.Added, list, progress)
	list = a.removeGames(changes.Removed, list, progress)
	list = a.updateGames(ctx, changes.Modified, list, progress)
	return list
}

func (a *Applier) addGames(ctx context.Context, added []AddedGame, list []models.Game, progress chan<- ProgressUpdate) []models.Game {
	for i, game := range added {
		sendProgress(progress, addingGameUpdate(i+1, len(added), game.Details.Name, game.BggID))
		a.logger.Info("adding game", "name", game.Details.Name, "bggId", game.BggID)

		version := bgg.VersionInfo{ID: game.Details.VersionID, Name: game.Details.VersionName}

		doc, err := a.lookup.LookupGame(ctx, game.BggID, version)
		if err != nil {
			a.logger.Error("failed to add game", "name", game.Details.Name, "bggId", game.BggID, "err", err)
			sendProgress(progress, itemFailedUpdate(i+1, len(added), game.Details.Name, err))
			continue
		}

		expansions := a.lookupExpansions(ctx, game.Expansions, progress)

		info, err := a.builder.BuildImageInfo(ctx, shared.Slugify(game.Details.Name), game.BggID, doc.ImageURL)
		if err != nil {
			a.logger.Error("failed to add game", "name", game.Details.Name, "bggId", game.BggID, "err", err)
			sendProgress(progress, itemFailedUpdate(i+1, len(added), game.Details.Name, err))
			continue
		}

		list = append(list, buildGame(game.BggID, game.Details, doc, expansions, info))
	}

	return list
}

func (a *Applier) removeGames(removed []RemovedGame, list []models.Game, progress chan<- ProgressUpdate) []models.Game {
	if len(removed) == 0 {
		return list
	}

	removedIDs := map[int]bool{}
	for i, game := range removed {
		sendProgress(progress, removingGameUpdate(i+1, len(removed), game.Name, game.BggID))
		a.logger.Info("removing game", "name", game.Name, "bggId", game.BggID)
		removedIDs[game.BggID] = true

		// Image deletion is best-effort; the store stays consistent either way.
		if err := a.builder.DeleteImages(game.BggID); err != nil {
			a.logger.Warn("failed to delete images", "name", game.Name, "bggId", game.BggID, "err", err)
		}
	}

	kept := make([]models.Game, 0, len(list))
	for _, game := range list {
		if !removedIDs[game.BggID] {
			kept = append(kept, game)
		}
	}

	return kept
}

func (a *Applier) updateGames(ctx context.Context, modified []ModifiedGame, list []models.Game, progress chan<- ProgressUpdate) []models.Game {
	for i, game := range modified {
		index := -1
		for j := range list {
			if list[j].BggID == game.BggID {
				index = j
				break
			}
		}
		if index == -1 {
			a.logger.Error("could not update game, not in data list", "bggId", game.BggID)
			continue
		}

		sendProgress(progress, updatingGameUpdate(i+1, len(modified), game.Details.Name, game.BggID))
		a.logger.Info("updating game", "name", game.Details.Name, "bggId", game.BggID)

		valuesChanged := false
		expansionsChanged := false
		versionChanged := false

		for _, change := range game.Changes {
			switch change.Type {
			case AddedExpansion, RemovedExpansion:
				expansionsChanged = true
			case ModifiedKey:
				valuesChanged = true
				if isVersionField(change.Name) {
					versionChanged = true
				}
			}
		}

		dataGame := &list[index]

		if valuesChanged {
			dataGame.Name = game.Details.Name
			dataGame.Favorite = game.Details.Favorite
			dataGame.SecondaryFavorite = game.Details.SecondaryFavorite
			dataGame.IsNew = game.Details.IsNew
		}

		if expansionsChanged {
			dataGame.Expansions = a.lookupExpansions(ctx, game.Expansions, progress)
		}

		if versionChanged {
			a.applyVersionChange(ctx, game, dataGame, progress)
		}
	}

	return list
}

// applyVersionChange re-fetches the full record and rebuilds images, since
// version-dependent fields all derive from the selected version.
func (a *Applier) applyVersionChange(ctx context.Context, game ModifiedGame, dataGame *models.Game, progress chan<- ProgressUpdate) {
	version := bgg.VersionInfo{ID: game.Details.VersionID, Name: game.Details.VersionName}

	doc, err := a.lookup.LookupGame(ctx, game.BggID, version)
	if err != nil {
		a.logger.Error("failed to update version info", "name", game.Details.Name, "bggId", game.BggID, "err", err)
		sendProgress(progress, itemFailedUpdate(0, 0, game.Details.Name, err))
		return
	}

	info, err := a.builder.BuildImageInfo(ctx, shared.Slugify(game.Details.Name), game.BggID, doc.ImageURL)
	if err != nil {
		a.logger.Error("failed to update version info", "name", game.Details.Name, "bggId", game.BggID, "err", err)
		sendProgress(progress, itemFailedUpdate(0, 0, game.Details.Name, err))
		return
	}

	dataGame.VersionID = game.Details.VersionID
	dataGame.VersionName = game.Details.VersionName

	dataGame.Image = info.Image
	dataGame.Thumbnail = info.Thumbnail
	dataGame.ThumbWidth = info.ThumbWidth
	dataGame.ThumbHeight = info.ThumbHeight
	dataGame.Blurhash = info.Blurhash
	dataGame.MinPlayers = doc.MinPlayers
	dataGame.MaxPlayers = doc.MaxPlayers
	dataGame.PlayingTime = doc.PlayingTime
	dataGame.Year = doc.Year
	dataGame.Designers = cleanValues(doc.Designers)
	dataGame.Publisher = doc.Publisher
	dataGame.Categories = doc.Categories
	dataGame.Mechanics = doc.Mechanics
	dataGame.Rating = doc.Rating
	dataGame.Weight = doc.Weight
	dataGame.Description = doc.Description
}

// lookupExpansions resolves the full record for each expansion. A failed
// expansion is logged and skipped without failing its game.
func (a *Applier) lookupExpansions(ctx context.Context, items []ExpansionItem, progress chan<- ProgressUpdate) []models.Expansion {
	expansions := make([]models.Expansion, 0, len(items))

	for i, item := range items {
		sendProgress(progress, expansionUpdate(i+1, len(items), item.Details.Name, item.BggID))
		a.logger.Info("fetching expansion", "name", item.Details.Name, "bggId", item.BggID)

		doc, err := a.lookup.LookupExpansion(ctx, item.BggID)
		if err != nil {
			a.logger.Error("failed to lookup expansion", "name", item.Details.Name, "bggId", item.BggID, "err", err)
			sendProgress(progress, itemFailedUpdate(i+1, len(items), item.Details.Name, err))
			continue
		}

		expansions = append(expansions, models.Expansion{
			BggID: item.BggID,
			Name:  doc.Name,
			Year:  doc.Year,
		})
	}

	return expansions
}

func buildGame(bggID int, details models.MasterGame, doc *bgg.GameDoc, expansions []models.Expansion, info images.ImageInfo) models.Game {
	return models.Game{
		BggID:       bggID,
		Name:        details.Name,
		VersionID:   details.VersionID,
		VersionName: details.VersionName,

		Image:       info.Image,
		Thumbnail:   info.Thumbnail,
		ThumbWidth:  info.ThumbWidth,
		ThumbHeight: info.ThumbHeight,
		Blurhash:    info.Blurhash,

		MinPlayers:  doc.MinPlayers,
		MaxPlayers:  doc.MaxPlayers,
		PlayingTime: doc.PlayingTime,
		Year:        doc.Year,
		Designers:   cleanValues(doc.Designers),
		Publisher:   doc.Publisher,
		Categories:  doc.Categories,
		Mechanics:   doc.Mechanics,
		Expansions:  expansions,
		Rating:      doc.Rating,
		Weight:      doc.Weight,
		Description: doc.Description,

		Favorite:          details.Favorite,
		SecondaryFavorite: details.SecondaryFavorite,
		IsNew:             details.IsNew,
	}
}

// BGG suffixes designer names with disambiguation parentheticals.
var trailingParenthetical = regexp.MustCompile(`\s*\(.*\)$`)

func cleanValues(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		cleaned = append(cleaned, trailingParenthetical.ReplaceAllString(value, ""))
	}
	return cleaned
}
