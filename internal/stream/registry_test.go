package stream

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_put_get(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Session{CameraID: "cam-1", Status: StatusActive})

	s, ok := reg.Get("cam-1")
	if !ok {
		t.Fatal("expected session")
	}
	if s.Status != StatusActive {
		t.Errorf("expected active, got %s", s.Status)
	}

	if _, ok := reg.Get("missing"); ok {
		t.Error("expected no session for unknown camera")
	}
}

func TestRegistry_one_entry_per_camera(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Session{CameraID: "cam-1", Status: StatusActive})
	reg.Put(Session{CameraID: "cam-1", Status: StatusInactive})
	reg.Put(Session{CameraID: "cam-1", Status: StatusActive})

	if reg.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Len())
	}
	if all := reg.ListAll(); len(all) != 1 || all[0].Status != StatusActive {
		t.Errorf("unexpected sessions: %+v", all)
	}
}

func TestRegistry_returns_copies(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Session{CameraID: "cam-1", Status: StatusActive, ViewerCount: 1})

	s, _ := reg.Get("cam-1")
	s.Status = StatusError
	s.ViewerCount = 99

	list := reg.ListAll()
	list[0].Status = StatusInactive

	got, _ := reg.Get("cam-1")
	if got.Status != StatusActive || got.ViewerCount != 1 {
		t.Errorf("registry state changed through a copy: %+v", got)
	}
}

func TestRegistry_Update(t *testing.T) {
	reg := NewRegistry()

	called := false
	if _, ok := reg.Update("cam-1", func(*Session) { called = true }); ok || called {
		t.Fatal("update on absent session must not call fn")
	}

	reg.Put(Session{CameraID: "cam-1", Status: StatusActive})
	got, ok := reg.Update("cam-1", func(s *Session) {
		s.Status = StatusError
		s.CameraID = "renamed"
	})
	if !ok {
		t.Fatal("expected update to apply")
	}
	if got.CameraID != "cam-1" || got.Status != StatusError {
		t.Errorf("unexpected result: %+v", got)
	}
	if _, ok := reg.Get("renamed"); ok {
		t.Error("update must not re-key a session")
	}
}

func TestRegistry_Delete(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Session{CameraID: "cam-1"})

	if !reg.Delete("cam-1") {
		t.Error("expected delete to report existing session")
	}
	if reg.Delete("cam-1") {
		t.Error("second delete should report false")
	}
	if reg.Len() != 0 {
		t.Errorf("expected empty registry, got %d", reg.Len())
	}
}

func TestRegistry_ListActive(t *testing.T) {
	reg := NewRegistry()
	reg.Put(Session{CameraID: "cam-3", Status: StatusActive})
	reg.Put(Session{CameraID: "cam-1", Status: StatusActive})
	reg.Put(Session{CameraID: "cam-2", Status: StatusInactive})
	reg.Put(Session{CameraID: "cam-4", Status: StatusError})

	active := reg.ListActive()
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}
	if active[0].CameraID != "cam-1" || active[1].CameraID != "cam-3" {
		t.Errorf("expected sorted ids cam-1, cam-3; got %s, %s", active[0].CameraID, active[1].CameraID)
	}
	if reg.ActiveCount() != 2 {
		t.Errorf("expected active count 2, got %d", reg.ActiveCount())
	}
	if len(reg.ListAll()) != 4 {
		t.Errorf("expected 4 sessions, got %d", len(reg.ListAll()))
	}
}

func TestRegistry_concurrent_access(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("cam-%d", i%4)
			for j := 0; j < 200; j++ {
				reg.Put(Session{CameraID: id, Status: StatusActive})
				reg.Update(id, func(s *Session) { s.ViewerCount++ })
				_ = reg.ListActive()
				_, _ = reg.Get(id)
			}
		}(i)
	}
	wg.Wait()

	if reg.Len() != 4 {
		t.Errorf("expected 4 sessions, got %d", reg.Len())
	}
}
