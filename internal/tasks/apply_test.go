package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/shelf/internal/bgg"
	"github.com/desertthunder/shelf/internal/images"
	"github.com/desertthunder/shelf/internal/models"
)

// mockGameLookup serves canned records and fails on demand.
type mockGameLookup struct {
	games      map[int]*bgg.GameDoc
	expansions map[int]*bgg.ExpansionDoc
	failGames  map[int]bool
}

func (m *mockGameLookup) LookupGame(ctx context.Context, bggID int, version bgg.VersionInfo) (*bgg.GameDoc, error) {
	if m.failGames[bggID] {
		return nil, errors.New("lookup blew up")
	}

	doc, ok := m.games[bggID]
	if !ok {
		return nil, fmt.Errorf("no game %d", bggID)
	}

	return doc, nil
}

func (m *mockGameLookup) LookupExpansion(ctx context.Context, bggID int) (*bgg.ExpansionDoc, error) {
	doc, ok := m.expansions[bggID]
	if !ok {
		return nil, fmt.Errorf("no expansion %d", bggID)
	}

	return doc, nil
}

// mockBuilder records image work instead of touching disk.
type mockBuilder struct {
	built      []int
	deleted    []int
	failBuilds map[int]bool
}

func (m *mockBuilder) BuildImageInfo(ctx context.Context, nameBase string, bggID int, srcURL string) (images.ImageInfo, error) {
	if m.failBuilds[bggID] {
		return images.ImageInfo{}, errors.New("image build blew up")
	}

	m.built = append(m.built, bggID)

	return images.ImageInfo{
		Image:     fmt.Sprintf("%s-%d-full.jpg", nameBase, bggID),
		Thumbnail: fmt.Sprintf("%s-%d-thumb.jpg", nameBase, bggID),
	}, nil
}

func (m *mockBuilder) DeleteImages(bggID int) error {
	m.deleted = append(m.deleted, bggID)
	return nil
}

func gameDoc(name string) *bgg.GameDoc {
	return &bgg.GameDoc{
		Name:        name,
		Description: "desc",
		ImageURL:    "https://img.test/full.jpg",
		Year:        "1995",
		MinPlayers:  2,
		MaxPlayers:  4,
		PlayingTime: 60,
		Publisher:   "KOSMOS",
		Designers:   []string{"Klaus Teuber (I)"},
		Rating:      7.1,
		Weight:      2.3,
	}
}

func TestApplyAdds(t *testing.T) {
	ctx := context.Background()

	t.Run("BuildsFullRecords", func(t *testing.T) {
		lookup := &mockGameLookup{
			games:      map[int]*bgg.GameDoc{13: gameDoc("Catan")},
			expansions: map[int]*bgg.ExpansionDoc{325: {Name: "Catan: Seafarers", Year: "1997"}},
		}
		builder := &mockBuilder{}
		applier := NewApplier(lookup, builder, nil)

		changes := &ListChanges{Added: []AddedGame{{
			BggID:   13,
			Details: models.MasterGame{Name: "Catan", Favorite: true},
			Expansions: []ExpansionItem{
				{BggID: 325, Details: models.MasterExpansion{Name: "Seafarers"}},
			},
		}}}

		list := applier.Apply(ctx, changes, nil, nil)

		if len(list) != 1 {
			t.Fatalf("expected 1 game, got %d", len(list))
		}

		game := list[0]
		if game.BggID != 13 || game.Name != "Catan" || !game.Favorite {
			t.Errorf("unexpected game %+v", game)
		}

		if game.Publisher != "KOSMOS" || game.Rating != 7.1 {
			t.Errorf("record fields should come from the lookup, got %+v", game)
		}

		if len(game.Designers) != 1 || game.Designers[0] != "Klaus Teuber" {
			t.Errorf("designer parentheticals should be stripped, got %v", game.Designers)
		}

		if len(game.Expansions) != 1 || game.Expansions[0].Name != "Catan: Seafarers" {
			t.Errorf("expansion records should come from the lookup, got %v", game.Expansions)
		}

		if game.Image != "catan-13-full.jpg" {
			t.Errorf("unexpected image path %q", game.Image)
		}
	})

	t.Run("FailedItemIsIsolated", func(t *testing.T) {
		lookup := &mockGameLookup{
			games: map[int]*bgg.GameDoc{
				13:   gameDoc("Catan"),
				822:  gameDoc("Carcassonne"),
				9209: gameDoc("Ticket to Ride"),
			},
			failGames: map[int]bool{822: true},
		}
		applier := NewApplier(lookup, &mockBuilder{}, nil)

		changes := &ListChanges{Added: []AddedGame{
			{BggID: 13, Details: models.MasterGame{Name: "Catan"}},
			{BggID: 822, Details: models.MasterGame{Name: "Carcassonne"}},
			{BggID: 9209, Details: models.MasterGame{Name: "Ticket to Ride"}},
		}}

		progress := make(chan ProgressUpdate, 32)
		list := applier.Apply(ctx, changes, nil, progress)
		close(progress)

		if len(list) != 2 {
			t.Fatalf("expected the failing game to be skipped, got %d games", len(list))
		}

		if list[0].BggID != 13 || list[1].BggID != 9209 {
			t.Errorf("unexpected survivors %+v", list)
		}

		failures := 0
		for update := range progress {
			if update.Phase == ItemFailed {
				failures++
			}
		}

		if failures != 1 {
			t.Errorf("expected one failure update, got %d", failures)
		}
	})

	t.Run("ImageFailureSkipsGame", func(t *testing.T) {
		lookup := &mockGameLookup{games: map[int]*bgg.GameDoc{13: gameDoc("Catan")}}
		builder := &mockBuilder{failBuilds: map[int]bool{13: true}}
		applier := NewApplier(lookup, builder, nil)

		changes := &ListChanges{Added: []AddedGame{
			{BggID: 13, Details: models.MasterGame{Name: "Catan"}},
		}}

		list := applier.Apply(ctx, changes, nil, nil)

		if len(list) != 0 {
			t.Errorf("a game must never be written without its images, got %+v", list)
		}
	})

	t.Run("FailedExpansionKeepsGame", func(t *testing.T) {
		lookup := &mockGameLookup{games: map[int]*bgg.GameDoc{13: gameDoc("Catan")}}
		applier := NewApplier(lookup, &mockBuilder{}, nil)

		changes := &ListChanges{Added: []AddedGame{{
			BggID:   13,
			Details: models.MasterGame{Name: "Catan"},
			Expansions: []ExpansionItem{
				{BggID: 99999, Details: models.MasterExpansion{Name: "Vaporware"}},
			},
		}}}

		list := applier.Apply(ctx, changes, nil, nil)

		if len(list) != 1 || len(list[0].Expansions) != 0 {
			t.Errorf("game should survive a failed expansion lookup, got %+v", list)
		}
	})
}

func TestApplyRemoves(t *testing.T) {
	ctx := context.Background()

	applier := NewApplier(&mockGameLookup{}, &mockBuilder{}, nil)
	builder := applier.builder.(*mockBuilder)

	existing := []models.Game{
		{BggID: 13, Name: "Catan"},
		{BggID: 822, Name: "Carcassonne"},
	}

	changes := &ListChanges{Removed: []RemovedGame{{BggID: 13, Name: "Catan"}}}

	list := applier.Apply(ctx, changes, existing, nil)

	if len(list) != 1 || list[0].BggID != 822 {
		t.Fatalf("unexpected surviving list %+v", list)
	}

	if len(builder.deleted) != 1 || builder.deleted[0] != 13 {
		t.Errorf("images of removed games should be deleted, got %v", builder.deleted)
	}
}

func TestApplyUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("ScalarChangesTouchOnlyFlags", func(t *testing.T) {
		lookup := &mockGameLookup{}
		builder := &mockBuilder{}
		applier := NewApplier(lookup, builder, nil)

		existing := []models.Game{
			{BggID: 13, Name: "Catan", Publisher: "KOSMOS", Favorite: false},
		}

		changes := &ListChanges{Modified: []ModifiedGame{{
			BggID:   13,
			Details: models.MasterGame{Name: "Catan", Favorite: true},
			Changes: []Change{{Type: ModifiedKey, Name: "favorite"}},
		}}}

		list := applier.Apply(ctx, changes, existing, nil)

		if !list[0].Favorite {
			t.Error("favorite flag should be applied")
		}

		if list[0].Publisher != "KOSMOS" {
			t.Error("untracked fields must survive a scalar update")
		}

		if len(builder.built) != 0 {
			t.Errorf("scalar updates must not rebuild images, got %v", builder.built)
		}
	})

	t.Run("ExpansionChangesRefetchSet", func(t *testing.T) {
		lookup := &mockGameLookup{
			expansions: map[int]*bgg.ExpansionDoc{
				1: {Name: "Inns & Cathedrals", Year: "2002"},
				2: {Name: "Traders & Builders", Year: "2003"},
			},
		}
		applier := NewApplier(lookup, &mockBuilder{}, nil)

		existing := []models.Game{
			{BggID: 822, Name: "Carcassonne", Expansions: []models.Expansion{{BggID: 1, Name: "Inns & Cathedrals"}}},
		}

		changes := &ListChanges{Modified: []ModifiedGame{{
			BggID:   822,
			Details: models.MasterGame{Name: "Carcassonne"},
			Changes: []Change{{Type: AddedExpansion, Name: "Traders & Builders"}},
			Expansions: []ExpansionItem{
				{BggID: 1, Details: models.MasterExpansion{Name: "Inns & Cathedrals"}},
				{BggID: 2, Details: models.MasterExpansion{Name: "Traders & Builders"}},
			},
		}}}

		list := applier.Apply(ctx, changes, existing, nil)

		if len(list[0].Expansions) != 2 {
			t.Fatalf("expected 2 expansions, got %+v", list[0].Expansions)
		}
	})

	t.Run("VersionChangeRebuildsRecord", func(t *testing.T) {
		doc := gameDoc("Catan")
		doc.Publisher = "Catan Studio"
		doc.Year = "2020"

		lookup := &mockGameLookup{games: map[int]*bgg.GameDoc{13: doc}}
		builder := &mockBuilder{}
		applier := NewApplier(lookup, builder, nil)

		existing := []models.Game{
			{BggID: 13, Name: "Catan", Publisher: "KOSMOS", Year: "1995"},
		}

		changes := &ListChanges{Modified: []ModifiedGame{{
			BggID:   13,
			Details: models.MasterGame{Name: "Catan", VersionID: 999, VersionName: "25th Anniversary"},
			Changes: []Change{{Type: ModifiedKey, Name: "version"}},
		}}}

		list := applier.Apply(ctx, changes, existing, nil)

		game := list[0]
		if game.VersionID != 999 || game.VersionName != "25th Anniversary" {
			t.Errorf("version identity should be applied, got %+v", game)
		}

		if game.Publisher != "Catan Studio" || game.Year != "2020" {
			t.Errorf("version-dependent fields should be refetched, got %+v", game)
		}

		if len(builder.built) != 1 {
			t.Errorf("version changes must rebuild images, got %v", builder.built)
		}
	})

	t.Run("FailedVersionFetchLeavesRecordIntact", func(t *testing.T) {
		lookup := &mockGameLookup{failGames: map[int]bool{13: true}}
		applier := NewApplier(lookup, &mockBuilder{}, nil)

		existing := []models.Game{
			{BggID: 13, Name: "Catan", Publisher: "KOSMOS", VersionID: 0},
		}

		changes := &ListChanges{Modified: []ModifiedGame{{
			BggID:   13,
			Details: models.MasterGame{Name: "Catan", VersionID: 999},
			Changes: []Change{{Type: ModifiedKey, Name: "version"}},
		}}}

		list := applier.Apply(ctx, changes, existing, nil)

		if list[0].VersionID != 0 || list[0].Publisher != "KOSMOS" {
			t.Errorf("a failed version fetch must not partially update, got %+v", list[0])
		}
	})

	t.Run("MissingDataEntryIsSkipped", func(t *testing.T) {
		applier := NewApplier(&mockGameLookup{}, &mockBuilder{}, nil)

		changes := &ListChanges{Modified: []ModifiedGame{{
			BggID:   4242,
			Details: models.MasterGame{Name: "Ghost"},
			Changes: []Change{{Type: ModifiedKey, Name: "favorite"}},
		}}}

		list := applier.Apply(ctx, changes, nil, nil)

		if len(list) != 0 {
			t.Errorf("expected no output for a missing entry, got %+v", list)
		}
	})
}
