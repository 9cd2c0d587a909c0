package daemon

import (
	"testing"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/cache"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/lock"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/session"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func TestModuleGraph(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := fx.ValidateApp(Module(Params{SessionName: "test"})); err != nil {
		t.Fatalf("dependency graph is broken: %v", err)
	}
}

func TestSessionBootstrap(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	sessionName := "test"

	if err := session.EnsureDir(sessionName); err != nil {
		t.Fatal(err)
	}

	lk, err := lock.Acquire(session.Dir(sessionName))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	// A second daemon for the same session must be refused.
	if _, err := lock.Acquire(session.Dir(sessionName)); err == nil {
		t.Fatal("second lock acquire should fail while held")
	}

	db, err := cache.Open(session.CachePath(sessionName))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	st := store.New()
	b := bus.New()
	mirror := cache.NewMirror(db, st, b, zap.NewNop())
	if err := mirror.WarmStart(); err != nil {
		t.Fatalf("warm start on empty cache: %v", err)
	}
	if len(st.Conversations()) != 0 {
		t.Error("empty cache must not seed conversations")
	}
}

func TestConfigFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := provideConfig()
	if cfg.ServerURL == "" || cfg.DefaultSession == "" {
		t.Errorf("missing config file should fall back to defaults, got %+v", cfg)
	}
}
