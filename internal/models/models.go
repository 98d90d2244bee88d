package models

// Expansion is a generated expansion record nested under a Game.
type Expansion struct {
	BggID int    `json:"bggId"`
	Name  string `json:"name"`
	Year  string `json:"year"`
}

// Game is a generated game record as persisted in the primary data file.
//
// A Game is always fully populated from a successful lookup and image build;
// partial records are never written.
type Game struct {
	BggID       int    `json:"bggId"`
	Name        string `json:"name"`
	VersionID   int    `json:"version,omitempty"`
	VersionName string `json:"versionName,omitempty"`
	Slug        string `json:"slug"`

	Image       string `json:"image"`
	Thumbnail   string `json:"thumbnail"`
	ThumbWidth  int    `json:"thumbWidth,omitempty"`
	ThumbHeight int    `json:"thumbHeight,omitempty"`
	Blurhash    string `json:"blurhash,omitempty"`

	MinPlayers  int         `json:"minPlayers"`
	MaxPlayers  int         `json:"maxPlayers"`
	PlayingTime int         `json:"playingTime"`
	Year        string      `json:"year"`
	Designers   []string    `json:"designers"`
	Publisher   string      `json:"publisher"`
	Categories  []string    `json:"categories"`
	Mechanics   []string    `json:"mechanics"`
	Expansions  []Expansion `json:"expansions"`
	Rating      float64     `json:"rating"`
	Weight      float64     `json:"weight"`
	Description string      `json:"description"`

	Favorite          bool `json:"favorite,omitempty"`
	SecondaryFavorite bool `json:"secondaryFavorite,omitempty"`

	// IsNew mirrors the master list flag. The recency-derived flag is a
	// separate field, emitted only on the init snapshot.
	IsNew bool `json:"new"`

	Sale string `json:"sale,omitempty"`
}

// ExtendedGame holds per-game metadata not needed by downstream consumers of
// the primary data file.
type ExtendedGame struct {
	BggID     int   `json:"bggId"`
	VersionID int   `json:"version,omitempty"`
	AddedDate int64 `json:"addedDate"`
}
