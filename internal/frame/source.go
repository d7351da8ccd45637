// Package frame captures still frames from a local source, encodes them
// as base64 JPEG, and streams them over the active transport channel.
package frame

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source yields frames to encode and send. Implementations stand in for
// a camera device.
type Source interface {
	NextFrame(ctx context.Context) (image.Image, error)
}

// DirSource cycles through the decodable images of a directory in name
// order, wrapping around at the end. It is the file-based stand-in for a
// live camera.
type DirSource struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource creates a source over the image files in dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	return &DirSource{dir: dir, files: files}, nil
}

// NextFrame decodes the next image in the cycle.
func (s *DirSource) NextFrame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}
	return img, nil
}

// PatternSource generates a synthetic moving gradient, useful for local
// development and tests without any image files.
type PatternSource struct {
	width  int
	height int

	mu   sync.Mutex
	tick int
}

// NewPatternSource creates a synthetic source at the given resolution.
// Non-positive dimensions default to 640x480.
func NewPatternSource(width, height int) *PatternSource {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &PatternSource{width: width, height: height}
}

// NextFrame renders the next frame of the pattern.
func (s *PatternSource) NextFrame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	tick := s.tick
	s.tick++
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x + tick) % 256),
				G: uint8((y + tick) % 256),
				B: uint8(tick % 256),
				A: 255,
			})
		}
	}
	return img, nil
}
