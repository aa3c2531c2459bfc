// Package web serves the read-only operator dashboard: current interaction
// state, the gallery inventory, and the run journal, with a websocket feed
// of live status snapshots.
package web

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/soulframe/soulframe/internal/log"
	"github.com/soulframe/soulframe/pkg/coordinator"
	"github.com/soulframe/soulframe/pkg/gallery"
	"github.com/soulframe/soulframe/pkg/hub"
	"github.com/soulframe/soulframe/pkg/journal"
)

// Server is the dashboard HTTP server. It only observes the installation;
// nothing here feeds back into the coordinator.
type Server struct {
	app  *fiber.App
	port string

	gallery *gallery.Manager
	journal *journal.Journal

	statusMu sync.RWMutex
	status   coordinator.Status

	statusHub *hub.Hub
}

// NewServer creates the dashboard server. journal may be nil.
func NewServer(port string, gal *gallery.Manager, j *journal.Journal) *Server {
	s := &Server{
		port:      port,
		gallery:   gal,
		journal:   j,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Soulframe Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/gallery", s.handleGallery)
	api.Get("/journal", s.handleJournal)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// StatusFunc returns the callback to hang on the coordinator's OnStatus:
// it caches the snapshot for /api/status and broadcasts it to websocket
// clients.
func (s *Server) StatusFunc() func(coordinator.Status) {
	return func(status coordinator.Status) {
		s.statusMu.Lock()
		s.status = status
		s.statusMu.Unlock()
		if s.statusHub.ClientCount() > 0 {
			s.statusHub.BroadcastJSON(status)
		}
	}
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go s.statusHub.Run()
	go func() {
		log.Info("dashboard listening", "port", s.port)
		if err := s.app.Listen(":" + s.port); err != nil {
			log.Error("dashboard server error", "error", err)
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
