// package images defines the image asset builder boundary.
//
// The synchronization pipeline only needs the contract: given a source URL and
// a file-name base, produce local image/thumbnail assets and report their
// paths and intrinsic dimensions. FileBuilder is the default implementation;
// resizing and blurhash generation belong to the downstream site build.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelf/internal/shared"
)

// ImageInfo describes the built assets for one game.
type ImageInfo struct {
	Image       string `json:"image"`
	Thumbnail   string `json:"thumbnail"`
	ThumbWidth  int    `json:"thumbWidth,omitempty"`
	ThumbHeight int    `json:"thumbHeight,omitempty"`
	Blurhash    string `json:"blurhash,omitempty"`
}

// Builder builds and deletes image assets for games.
type Builder interface {
	// BuildImageInfo downloads the source image and materializes the full and
	// thumbnail assets for (nameBase, id), returning their relative paths.
	BuildImageInfo(ctx context.Context, nameBase string, bggID int, srcURL string) (ImageInfo, error)

	// DeleteImages removes all assets built for the id. Best-effort.
	DeleteImages(bggID int) error
}

// imageTypes are the asset types written per game.
var imageTypes = []string{"full", "thumbnail"}

// FileBuilder stores image assets as files under a directory, named by a
// pattern with {name}, {id} and {type} placeholders.
type FileBuilder struct {
	dir     string
	pattern string
	client  *http.Client
	logger  *log.Logger
}

// NewFileBuilder creates a FileBuilder from the image configuration.
func NewFileBuilder(cfg *shared.Config, client *http.Client, logger *log.Logger) *FileBuilder {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &FileBuilder{
		dir:     cfg.Image.Dir,
		pattern: cfg.Image.NamePattern,
		client:  client,
		logger:  logger,
	}
}

// BuildImageInfo implements [Builder].
func (b *FileBuilder) BuildImageInfo(ctx context.Context, nameBase string, bggID int, srcURL string) (ImageInfo, error) {
	data, err := b.download(ctx, srcURL)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to build images for %d: %w", bggID, err)
	}

	info := ImageInfo{}

	info.Image, err = b.write(nameBase, bggID, "full", data)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to build full image for %d: %w", bggID, err)
	}

	info.Thumbnail, err = b.write(nameBase, bggID, "thumbnail", data)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to build thumbnail for %d: %w", bggID, err)
	}

	if config, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.ThumbWidth = config.Width
		info.ThumbHeight = config.Height
	} else {
		b.logger.Debug("failed to probe image dimensions", "bggId", bggID, "err", err)
	}

	return info, nil
}

// DeleteImages implements [Builder]. Missing files are not an error.
//
// The glob wildcards only the name base; the id stays adjacent to the literal
// type text, so a different game whose name base happens to contain the id as
// a segment never matches.
func (b *FileBuilder) DeleteImages(bggID int) error {
	for _, imageType := range imageTypes {
		pattern := b.fileName("*", bggID, imageType)

		matches, err := filepath.Glob(filepath.Join(b.dir, pattern))
		if err != nil {
			return fmt.Errorf("failed to glob images for %d: %w", bggID, err)
		}

		for _, match := range matches {
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete %s: %w", match, err)
			}
		}
	}

	return nil
}

func (b *FileBuilder) download(ctx context.Context, srcURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d fetching %s", shared.ErrAPIRequest, resp.StatusCode, srcURL)
	}

	return io.ReadAll(resp.Body)
}

func (b *FileBuilder) write(nameBase string, bggID int, imageType string, data []byte) (string, error) {
	file := b.fileName(nameBase, bggID, imageType)
	fullPath := filepath.Join(b.dir, file)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", err
	}

	return file, nil
}

func (b *FileBuilder) fileName(nameBase string, bggID int, imageType string) string {
	file := b.pattern
	file = strings.ReplaceAll(file, "{name}", nameBase)
	file = strings.ReplaceAll(file, "{id}", fmt.Sprintf("%d", bggID))
	file = strings.ReplaceAll(file, "{type}", imageType)
	return file
}
