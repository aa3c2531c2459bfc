package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/soulframe/soulframe/pkg/hub"
)

// galleryEntry is the dashboard's view of one image package.
type galleryEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Regions int    `json:"regions"`
	Ambient bool   `json:"ambient"`
	Current bool   `json:"current"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	return c.JSON(status)
}

func (s *Server) handleGallery(c *fiber.Ctx) error {
	current := s.gallery.Current()
	currentID := ""
	if current != nil {
		currentID = current.ID
	}

	entries := []galleryEntry{}
	for _, img := range s.gallery.Images() {
		entries = append(entries, galleryEntry{
			ID:      img.ID,
			Title:   img.Title,
			Regions: len(img.Regions),
			Ambient: img.HasAmbient(),
			Current: img.ID == currentID,
		})
	}
	return c.JSON(fiber.Map{
		"count":   s.gallery.Count(),
		"current": currentID,
		"images":  entries,
	})
}

func (s *Server) handleJournal(c *fiber.Ctx) error {
	if s.journal == nil {
		return c.JSON(fiber.Map{"transitions": []any{}, "image_changes": []any{}})
	}
	limit := c.QueryInt("limit", 50)

	transitions, err := s.journal.RecentTransitions(limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	changes, err := s.journal.RecentImageChanges(limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	engaged, err := s.journal.EngagementCount("engaged", time.Now().Add(-24*time.Hour))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"transitions":   transitions,
		"image_changes": changes,
		"engaged_24h":   engaged,
	})
}

func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)
	client.Run()
}
