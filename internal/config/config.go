// Package config provides configuration helpers for soulframe commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default installation configuration.
const (
	DefaultShmName     = "soulframe_vision"
	DefaultGalleryDir  = "content/gallery"
	DefaultJournalPath = ""
	DefaultWebPort     = "8090"

	// Loop rate of the coordinator tick loop.
	DefaultTickRate = 30

	// Vision samples older than this are treated as "nobody there".
	DefaultStaleTimeout = 2 * time.Second
)

// Default state machine timing and distances. Per-image metadata can
// override the distances and the withdraw fade.
const (
	DefaultPresenceDistanceCM = 300.0
	DefaultCloseDistanceCM    = 80.0

	DefaultPresenceLostTimeout = 3 * time.Second
	DefaultFaceLostTimeout     = 5 * time.Second
	DefaultGazeAwayTimeout     = 8 * time.Second
	DefaultWithdrawFade        = 4 * time.Second
	DefaultIdleImageCycle      = 5 * time.Minute

	DefaultGazeMinConfidence = 0.6
)

// Env returns the value of an environment variable or a default.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns an integer environment variable or a default.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// ShmName returns the shared memory segment name for vision samples.
func ShmName() string {
	return Env("SOULFRAME_SHM_NAME", DefaultShmName)
}

// GalleryDir returns the gallery content directory.
func GalleryDir() string {
	return Env("SOULFRAME_GALLERY", DefaultGalleryDir)
}

// JournalPath returns the sqlite journal path, empty to disable journaling.
func JournalPath() string {
	return Env("SOULFRAME_JOURNAL", DefaultJournalPath)
}

// WebPort returns the status dashboard port.
func WebPort() string {
	return Env("SOULFRAME_WEB_PORT", DefaultWebPort)
}
