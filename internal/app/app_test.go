package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/docstore"
	"github.com/matheus3301/wppbot/internal/media"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/status"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func testBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/status":
			_ = json.NewEncoder(w).Encode(map[string]any{"connected": true, "messagesCount": 3, "contactsCount": 1})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testParams(t *testing.T, backendURL string) Params {
	t.Helper()
	home := t.TempDir()
	t.Setenv("WPPBOT_HOME", home)
	cfg := config.Default()
	cfg.API.BaseURL = backendURL
	cfg.Store.WatchInterval = config.Duration(20 * time.Millisecond)
	cfg.Media.ListenAddr = "127.0.0.1:0"
	return Params{UserID: "loja1", Config: cfg, Command: "test", Passive: true}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestModuleLifecycle(t *testing.T) {
	backend := testBackend(t)
	p := testParams(t, backend.URL)

	var (
		ctrl   *dashboard.Controller
		docs   *docstore.Store
		sender *outbox.Sender
	)
	app := fxtest.New(t, Module(p), WithZapLogger(), fx.Populate(&ctrl, &docs, &sender))
	app.RequireStart()

	if got := ctrl.Snapshot().UserID; got != "loja1" {
		t.Fatalf("identity = %q", got)
	}

	ctx := context.Background()
	if err := ctrl.RefreshStatus(ctx); err != nil {
		t.Fatal(err)
	}
	if s := ctrl.Snapshot(); s.Phase != status.Connected || s.Status.MessagesCount != 3 {
		t.Errorf("state after refresh = %s %+v", s.Phase, s.Status)
	}

	if err := docs.Set(ctx, docstore.ConfigFieldPath("loja1", "botPrompt"), "Atenda com educação."); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "config projection", func() bool {
		return ctrl.Snapshot().Config.BotPrompt == "Atenda com educação."
	})

	rule, err := ctrl.AddRule(ctx, "cardápio", "Segue o cardápio!")
	if err != nil {
		t.Fatal(err)
	}
	if err := sender.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	snap, err := docs.Get(ctx, docstore.RulePath("loja1", rule.ID))
	if err != nil || !snap.Exists {
		t.Fatalf("rule not stored: %v", err)
	}

	app.RequireStop()
}

func TestModuleHoldsProfileLock(t *testing.T) {
	backend := testBackend(t)
	p := testParams(t, backend.URL)

	first := fxtest.New(t, Module(p), WithZapLogger())
	first.RequireStart()
	defer first.RequireStop()

	second := fx.New(Module(p), fx.NopLogger)
	if err := second.Err(); err == nil {
		t.Fatal("second instance acquired the profile lock")
	}
}

func TestModuleServesMedia(t *testing.T) {
	backend := testBackend(t)
	p := testParams(t, backend.URL)
	p.ServeMedia = true
	p.Command = ""

	var srv *media.Server
	app := fxtest.New(t, Module(p), WithZapLogger(), fx.Populate(&srv))
	app.RequireStart()
	defer app.RequireStop()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}
}

func TestStorePathOverride(t *testing.T) {
	backend := testBackend(t)
	p := testParams(t, backend.URL)
	p.Config.Store.Path = filepath.Join(t.TempDir(), "custom.db")

	var docs *docstore.Store
	app := fxtest.New(t, Module(p), WithZapLogger(), fx.Populate(&docs))
	app.RequireStart()
	defer app.RequireStop()

	if err := docs.Set(context.Background(), "probe", true); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("WPPBOT_HOME", home)
	t.Setenv("WPPBOT_API_URL", "")
	t.Setenv("WPPBOT_USER", "")

	cfg := config.Default()
	cfg.API.BaseURL = "http://127.0.0.1:3000"
	cfg.DefaultUser = "loja1"
	if err := config.Save(filepath.Join(home, "config.toml"), cfg); err != nil {
		t.Fatal(err)
	}

	got, uid, err := Load("", "")
	if err != nil {
		t.Fatal(err)
	}
	if uid != "loja1" || got.API.BaseURL != "http://127.0.0.1:3000" {
		t.Errorf("Load = %q, %q", uid, got.API.BaseURL)
	}

	if _, uid, err = Load("loja2", ""); err != nil || uid != "loja2" {
		t.Errorf("flag override = %q, %v", uid, err)
	}
	if _, _, err = Load("../etc", ""); err == nil {
		t.Error("expected invalid user id error")
	}
}

func TestLoadRequiresUserAndURL(t *testing.T) {
	t.Setenv("WPPBOT_HOME", t.TempDir())
	t.Setenv("WPPBOT_API_URL", "")
	t.Setenv("WPPBOT_USER", "")
	if _, _, err := Load("loja1", ""); err == nil {
		t.Error("expected missing base URL error")
	}

	t.Setenv("WPPBOT_API_URL", "http://127.0.0.1:3000")
	if _, _, err := Load("", ""); !errors.Is(err, ErrNoUser) {
		t.Errorf("err = %v, want ErrNoUser", err)
	}
}

func TestModuleSkipMedia(t *testing.T) {
	backend := testBackend(t)
	p := testParams(t, backend.URL)
	p.SkipMedia = true

	var ctrl *dashboard.Controller
	app := fxtest.New(t, Module(p), fx.Populate(&ctrl))
	app.RequireStart()
	defer app.RequireStop()

	_, err := ctrl.UploadMedia(context.Background(), "menu.png", "image/png", strings.NewReader("x"), 1)
	if !errors.Is(err, dashboard.ErrDisabled) {
		t.Errorf("upload err = %v, want ErrDisabled", err)
	}
}
