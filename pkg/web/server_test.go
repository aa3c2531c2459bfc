package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/soulframe/soulframe/pkg/coordinator"
	"github.com/soulframe/soulframe/pkg/gallery"
	"github.com/soulframe/soulframe/pkg/journal"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "portrait")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := `{"id": "portrait_01", "title": "The Miner"}`
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	mgr := gallery.NewManager(root)
	if _, err := mgr.Scan(); err != nil {
		t.Fatal(err)
	}

	j, err := journal.Open(filepath.Join(root, "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })

	return NewServer("0", mgr, j)
}

func get(t *testing.T, s *Server, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestServer_Status(t *testing.T) {
	s := newTestServer(t)
	s.StatusFunc()(coordinator.Status{State: "engaged", ImageID: "portrait_01"})

	resp := get(t, s, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
	var status coordinator.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.State != "engaged" || status.ImageID != "portrait_01" {
		t.Errorf("got %+v", status)
	}
}

func TestServer_Gallery(t *testing.T) {
	s := newTestServer(t)

	resp := get(t, s, "/api/gallery")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
	var body struct {
		Count   int    `json:"count"`
		Current string `json:"current"`
		Images  []struct {
			ID      string `json:"id"`
			Current bool   `json:"current"`
		} `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || body.Current != "portrait_01" {
		t.Errorf("got %+v", body)
	}
	if len(body.Images) != 1 || !body.Images[0].Current {
		t.Errorf("images: got %+v", body.Images)
	}
}

func TestServer_Journal(t *testing.T) {
	s := newTestServer(t)
	if err := s.journal.RecordTransition("idle", "presence", "portrait_01"); err != nil {
		t.Fatal(err)
	}

	resp := get(t, s, "/api/journal")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
	var body struct {
		Transitions []journal.Transition `json:"transitions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Transitions) != 1 || body.Transitions[0].To != "presence" {
		t.Errorf("got %+v", body.Transitions)
	}
}
