package bgg

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// SearchMatch is one candidate row from a /search response.
type SearchMatch struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Year string `json:"year,omitempty"`
}

// VersionDoc is a nested version record on a game document.
type VersionDoc struct {
	VersionID    int
	VersionName  string
	ImageURL     string
	ThumbnailURL string
	Publisher    string
	Year         string
	Artists      []string
}

// ExpansionLink is an expansion stub on a game document. Full expansion data
// requires a separate /thing lookup.
type ExpansionLink struct {
	BggID int
	Name  string
}

// GameDoc is a fully extracted primary game record.
type GameDoc struct {
	Name         string
	Description  string
	ImageURL     string
	ThumbnailURL string
	Year         string
	MinPlayers   int
	MaxPlayers   int
	PlayingTime  int
	Publisher    string
	Designers    []string
	Artists      []string
	Categories   []string
	Mechanics    []string
	Families     []string
	Rating       float64
	Weight       float64

	Versions       []VersionDoc
	ExpansionLinks []ExpansionLink
}

// ExpansionDoc is a fully extracted expansion record.
type ExpansionDoc struct {
	Name         string
	Description  string
	ImageURL     string
	ThumbnailURL string
	Year         string
}

// ParseError reports a structurally unexpected API document. It carries the
// raw document so the mismatch can be diagnosed offline; it is never retried.
type ParseError struct {
	Path string // field path within the document, e.g. `item.link[boardgamepublisher]`
	Msg  string
	Doc  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q: %s", e.Path, e.Msg)
}

type fieldError struct {
	path string
	msg  string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("failed to get %q: %s", e.path, e.msg)
}

func wrapParse(doc string, err error) error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*fieldError); ok {
		return &ParseError{Path: fe.path, Msg: fe.msg, Doc: doc}
	}
	return &ParseError{Path: "document", Msg: err.Error(), Doc: doc}
}

// wire shapes

type xmlValue struct {
	Value string `xml:"value,attr"`
}

type xmlTyped struct {
	Type  string `xml:"type,attr"`
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

type xmlStatistics struct {
	Ratings []xmlRatings `xml:"ratings"`
}

type xmlRatings struct {
	Average       []xmlValue `xml:"average"`
	AverageWeight []xmlValue `xml:"averageweight"`
}

type xmlItem struct {
	ID            string          `xml:"id,attr"`
	Type          string          `xml:"type,attr"`
	Thumbnail     []string        `xml:"thumbnail"`
	Image         []string        `xml:"image"`
	Description   []string        `xml:"description"`
	Names         []xmlTyped      `xml:"name"`
	YearPublished []xmlValue      `xml:"yearpublished"`
	MinPlayers    []xmlValue      `xml:"minplayers"`
	MaxPlayers    []xmlValue      `xml:"maxplayers"`
	PlayingTime   []xmlValue      `xml:"playingtime"`
	Links         []xmlTyped      `xml:"link"`
	Statistics    []xmlStatistics `xml:"statistics"`
	Versions      []xmlVersions   `xml:"versions"`
}

type xmlVersions struct {
	Items []xmlItem `xml:"item"`
}

type xmlDoc struct {
	Items []xmlItem `xml:"item"`
}

func decodeDoc(doc string) (*xmlDoc, error) {
	var parsed xmlDoc
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("malformed XML: %w", err)
	}
	return &parsed, nil
}

// ParseSearch extracts candidate matches from a /search response document.
func ParseSearch(doc string) ([]SearchMatch, error) {
	parsed, err := decodeDoc(doc)
	if err != nil {
		return nil, wrapParse(doc, err)
	}

	matches := make([]SearchMatch, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		path := fmt.Sprintf("item[%d]", i)

		id, err := intAttr(item.ID, path+".id")
		if err != nil {
			return nil, wrapParse(doc, err)
		}

		name, err := singleAttrValue(attrValues(item.Names), path+".name")
		if err != nil {
			return nil, wrapParse(doc, err)
		}

		year, _, err := optionalSingleValue(item.YearPublished, path+".yearpublished")
		if err != nil {
			return nil, wrapParse(doc, err)
		}

		matches = append(matches, SearchMatch{ID: id, Name: name, Year: year})
	}

	return matches, nil
}

// ParseGame extracts a primary game record (with nested versions and expansion
// stubs) from a /thing response document.
//
// Returns (nil, nil) when the document contains no item, which is how BGG
// reports an unknown or deleted id. Callers must branch on nil explicitly.
func ParseGame(doc string) (*GameDoc, error) {
	item, err := singleOptionalItem(doc)
	if err != nil || item == nil {
		return nil, err
	}

	game := &GameDoc{}
	extractors := []func() error{
		func() (err error) { game.Name, err = singleTypedValue(item.Names, "primary", "item.name"); return },
		func() (err error) { game.Description, err = singleContent(item.Description, "item.description"); return },
		func() (err error) { game.ImageURL, err = singleContent(item.Image, "item.image"); return },
		func() (err error) { game.ThumbnailURL, err = singleContent(item.Thumbnail, "item.thumbnail"); return },
		func() (err error) { game.Year, err = singleValue(item.YearPublished, "item.yearpublished"); return },
		func() (err error) { game.MinPlayers, err = singleIntValue(item.MinPlayers, "item.minplayers"); return },
		func() (err error) { game.MaxPlayers, err = singleIntValue(item.MaxPlayers, "item.maxplayers"); return },
		func() (err error) { game.PlayingTime, err = singleIntValue(item.PlayingTime, "item.playingtime"); return },
		func() (err error) { game.Publisher, err = firstTypedValue(item.Links, "boardgamepublisher", "item.link"); return },
	}

	for _, extract := range extractors {
		if err := extract(); err != nil {
			return nil, wrapParse(doc, err)
		}
	}

	game.Designers = typedValues(item.Links, "boardgamedesigner")
	game.Artists = typedValues(item.Links, "boardgameartist")
	game.Categories = typedValues(item.Links, "boardgamecategory")
	game.Mechanics = typedValues(item.Links, "boardgamemechanic")
	game.Families = typedValues(item.Links, "boardgamefamily")

	rating, weight, err := extractRatings(item)
	if err != nil {
		return nil, wrapParse(doc, err)
	}
	game.Rating = rating
	game.Weight = weight

	versions, err := extractVersions(item)
	if err != nil {
		return nil, wrapParse(doc, err)
	}
	game.Versions = versions

	links, err := extractExpansionLinks(item)
	if err != nil {
		return nil, wrapParse(doc, err)
	}
	game.ExpansionLinks = links

	return game, nil
}

// ParseExpansion extracts an expansion record from a /thing response document.
// Returns (nil, nil) when the document contains no item.
func ParseExpansion(doc string) (*ExpansionDoc, error) {
	item, err := singleOptionalItem(doc)
	if err != nil || item == nil {
		return nil, err
	}

	expansion := &ExpansionDoc{}
	extractors := []func() error{
		func() (err error) {
			expansion.Name, err = singleTypedValue(item.Names, "primary", "item.name")
			return
		},
		func() (err error) { expansion.Description, err = singleContent(item.Description, "item.description"); return },
		func() (err error) { expansion.ImageURL, err = singleContent(item.Image, "item.image"); return },
		func() (err error) { expansion.ThumbnailURL, err = singleContent(item.Thumbnail, "item.thumbnail"); return },
		func() (err error) { expansion.Year, err = singleValue(item.YearPublished, "item.yearpublished"); return },
	}

	for _, extract := range extractors {
		if err := extract(); err != nil {
			return nil, wrapParse(doc, err)
		}
	}

	return expansion, nil
}

func singleOptionalItem(doc string) (*xmlItem, error) {
	parsed, err := decodeDoc(doc)
	if err != nil {
		return nil, wrapParse(doc, err)
	}

	switch len(parsed.Items) {
	case 0:
		return nil, nil
	case 1:
		return &parsed.Items[0], nil
	default:
		return nil, wrapParse(doc, &fieldError{path: "item", msg: "multiple matches"})
	}
}

func extractRatings(item *xmlItem) (rating, weight float64, err error) {
	if len(item.Statistics) != 1 {
		return 0, 0, &fieldError{path: "item.statistics", msg: cardinalityMsg(len(item.Statistics))}
	}
	stats := item.Statistics[0]
	if len(stats.Ratings) != 1 {
		return 0, 0, &fieldError{path: "item.statistics.ratings", msg: cardinalityMsg(len(stats.Ratings))}
	}

	ratings := stats.Ratings[0]
	if rating, err = singleFloatValue(ratings.Average, "item.statistics.ratings.average"); err != nil {
		return 0, 0, err
	}
	if weight, err = singleFloatValue(ratings.AverageWeight, "item.statistics.ratings.averageweight"); err != nil {
		return 0, 0, err
	}
	return rating, weight, nil
}

func extractVersions(item *xmlItem) ([]VersionDoc, error) {
	if len(item.Versions) == 0 {
		return nil, nil
	}
	if len(item.Versions) > 1 {
		return nil, &fieldError{path: "item.versions", msg: "multiple matches"}
	}

	versions := make([]VersionDoc, 0, len(item.Versions[0].Items))
	for i, versionItem := range item.Versions[0].Items {
		path := fmt.Sprintf("item.versions.item[%d]", i)

		id, err := intAttr(versionItem.ID, path+".id")
		if err != nil {
			return nil, err
		}

		name, err := singleTypedValue(versionItem.Names, "primary", path+".name")
		if err != nil {
			return nil, err
		}

		year, _, err := optionalSingleValue(versionItem.YearPublished, path+".yearpublished")
		if err != nil {
			return nil, err
		}

		publisher, _, err := optionalFirstTypedValue(versionItem.Links, "boardgamepublisher", path+".link")
		if err != nil {
			return nil, err
		}

		image, err := optionalSingleContent(versionItem.Image, path+".image")
		if err != nil {
			return nil, err
		}

		thumbnail, err := optionalSingleContent(versionItem.Thumbnail, path+".thumbnail")
		if err != nil {
			return nil, err
		}

		versions = append(versions, VersionDoc{
			VersionID:    id,
			VersionName:  name,
			ImageURL:     image,
			ThumbnailURL: thumbnail,
			Publisher:    publisher,
			Year:         year,
			Artists:      typedValues(versionItem.Links, "boardgameartist"),
		})
	}

	return versions, nil
}

func extractExpansionLinks(item *xmlItem) ([]ExpansionLink, error) {
	var links []ExpansionLink
	for _, link := range item.Links {
		if link.Type != string(TypeExpansion) {
			continue
		}

		id, err := intAttr(link.ID, "item.link[boardgameexpansion].id")
		if err != nil {
			return nil, err
		}

		links = append(links, ExpansionLink{BggID: id, Name: link.Value})
	}
	return links, nil
}

// extraction helpers; all cardinality failures carry the offending field path

func cardinalityMsg(count int) string {
	if count == 0 {
		return "no matches"
	}
	return "multiple matches"
}

func singleValue(nodes []xmlValue, path string) (string, error) {
	if len(nodes) != 1 {
		return "", &fieldError{path: path, msg: cardinalityMsg(len(nodes))}
	}
	return nodes[0].Value, nil
}

func optionalSingleValue(nodes []xmlValue, path string) (string, bool, error) {
	switch len(nodes) {
	case 0:
		return "", false, nil
	case 1:
		return nodes[0].Value, true, nil
	default:
		return "", false, &fieldError{path: path, msg: "multiple matches"}
	}
}

func singleIntValue(nodes []xmlValue, path string) (int, error) {
	raw, err := singleValue(nodes, path)
	if err != nil {
		return 0, err
	}
	return intAttr(raw, path)
}

func singleFloatValue(nodes []xmlValue, path string) (float64, error) {
	raw, err := singleValue(nodes, path)
	if err != nil {
		return 0, err
	}

	value, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return 0, &fieldError{path: path, msg: fmt.Sprintf("not a decimal: %q", raw)}
	}
	return value, nil
}

func singleContent(nodes []string, path string) (string, error) {
	if len(nodes) != 1 {
		return "", &fieldError{path: path, msg: cardinalityMsg(len(nodes))}
	}
	return strings.TrimSpace(nodes[0]), nil
}

func optionalSingleContent(nodes []string, path string) (string, error) {
	switch len(nodes) {
	case 0:
		return "", nil
	case 1:
		return strings.TrimSpace(nodes[0]), nil
	default:
		return "", &fieldError{path: path, msg: "multiple matches"}
	}
}

func attrValues(nodes []xmlTyped) []xmlValue {
	values := make([]xmlValue, 0, len(nodes))
	for _, node := range nodes {
		values = append(values, xmlValue{Value: node.Value})
	}
	return values
}

func singleAttrValue(nodes []xmlValue, path string) (string, error) {
	return singleValue(nodes, path)
}

func typedValues(nodes []xmlTyped, typ string) []string {
	var values []string
	for _, node := range nodes {
		if node.Type == typ {
			values = append(values, node.Value)
		}
	}
	return values
}

func singleTypedValue(nodes []xmlTyped, typ, path string) (string, error) {
	values := typedValues(nodes, typ)
	if len(values) != 1 {
		return "", &fieldError{path: fmt.Sprintf("%s[%s]", path, typ), msg: cardinalityMsg(len(values))}
	}
	return values[0], nil
}

// firstTypedValue takes the first match; some games list several publishers
// and the primary one comes first.
func firstTypedValue(nodes []xmlTyped, typ, path string) (string, error) {
	values := typedValues(nodes, typ)
	if len(values) == 0 {
		return "", &fieldError{path: fmt.Sprintf("%s[%s]", path, typ), msg: "no matches"}
	}
	return values[0], nil
}

func optionalFirstTypedValue(nodes []xmlTyped, typ, path string) (string, bool, error) {
	values := typedValues(nodes, typ)
	if len(values) == 0 {
		return "", false, nil
	}
	return values[0], true, nil
}

func intAttr(raw, path string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &fieldError{path: path, msg: fmt.Sprintf("not an integer: %q", raw)}
	}
	return value, nil
}
