package testsupport

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if got := string(LoadFixture(t, path)); got != "hello" {
		t.Errorf("LoadFixture() = %q, want hello", got)
	}
}

func TestLoadFixtureJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.json")
	if err := os.WriteFile(path, []byte(`{"name":"ann"}`), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var dest struct {
		Name string `json:"name"`
	}
	LoadFixtureJSON(t, path, &dest)
	if dest.Name != "ann" {
		t.Errorf("Name = %q, want ann", dest.Name)
	}
}

func TestEventually(t *testing.T) {
	var flag atomic.Bool
	go func() {
		time.Sleep(20 * time.Millisecond)
		flag.Store(true)
	}()
	Eventually(t, time.Second, flag.Load, "flag set")
}
