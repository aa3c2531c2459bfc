package gallery

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/soulframe/soulframe/internal/log"
)

// ErrEmptyGallery is returned when a scan finds no loadable image packages.
var ErrEmptyGallery = errors.New("no image packages found in gallery")

// Manager loads, indexes, and cycles through gallery image packages.
// Safe for concurrent use: the watcher rescans while the coordinator reads.
type Manager struct {
	mu     sync.RWMutex
	dir    string
	images []*ImageMetadata
	index  int
}

// NewManager creates a manager for the given gallery directory.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Scan walks the gallery directory and reloads every image package.
// Packages that fail to load are skipped with a log entry. The current
// index is preserved by image id where possible so a rescan triggered by
// the authoring tool does not yank the displayed image away.
func (m *Manager) Scan() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(m.dir, e.Name()))
		}
	}
	sort.Strings(dirs)

	var images []*ImageMetadata
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err != nil {
			continue
		}
		meta, err := LoadPackage(dir)
		if err != nil {
			log.Warn("skipping unloadable image package", "dir", dir, "err", err)
			continue
		}
		images = append(images, meta)
		log.Info("loaded image package", "id", meta.ID, "regions", len(meta.Regions))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	currentID := ""
	if m.index < len(m.images) && len(m.images) > 0 {
		currentID = m.images[m.index].ID
	}
	m.images = images
	m.index = 0
	for i, img := range images {
		if img.ID == currentID {
			m.index = i
			break
		}
	}

	if len(images) == 0 {
		return 0, ErrEmptyGallery
	}
	return len(images), nil
}

// Current returns the displayed image, or nil when the gallery is empty.
func (m *Manager) Current() *ImageMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.images) == 0 {
		return nil
	}
	return m.images[m.index]
}

// Count returns the number of loaded images.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.images)
}

// Images returns a snapshot of all loaded images in gallery order.
func (m *Manager) Images() []*ImageMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ImageMetadata, len(m.images))
	copy(out, m.images)
	return out
}

// Next advances to the next image, wrapping around.
func (m *Manager) Next() *ImageMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.images) == 0 {
		return nil
	}
	m.index = (m.index + 1) % len(m.images)
	img := m.images[m.index]
	log.Info("advanced gallery", "index", m.index+1, "count", len(m.images), "id", img.ID)
	return img
}

// ImagePath returns the absolute path of the current image file.
func (m *Manager) ImagePath() (string, bool) {
	img := m.Current()
	if img == nil {
		return "", false
	}
	return filepath.Join(img.Dir, img.Image.Filename), true
}

// AudioPath resolves an audio file relative to the current image package.
// Returns false when the file does not exist so a missing asset degrades
// to silence instead of a downstream error.
func (m *Manager) AudioPath(relative string) (string, bool) {
	img := m.Current()
	if img == nil || relative == "" {
		return "", false
	}
	path := filepath.Join(img.Dir, relative)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
