package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/wppbot/internal/api"
	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/docstore"
	"github.com/matheus3301/wppbot/internal/model"
)

func openDocs(t *testing.T, path string) *docstore.Store {
	t.Helper()
	docs, err := docstore.Open(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := docs.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	return docs
}

func newRunner(t *testing.T, handler http.HandlerFunc) (*runner, *bytes.Buffer, *docstore.Store) {
	t.Helper()
	docs := openDocs(t, filepath.Join(t.TempDir(), "documents.db"))
	r, out := newRunnerWith(t, handler, docs)
	return r, out, docs
}

// newRunnerWith builds a runner over docs, standing in for one wppbotctl
// invocation against a shared profile.
func newRunnerWith(t *testing.T, handler http.HandlerFunc, docs *docstore.Store) (*runner, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	opts := dashboard.OptionsFromConfig(config.Default())
	opts.Passive = true
	ctrl := dashboard.New(dashboard.Deps{Backend: client, Docs: docs}, opts)
	t.Cleanup(func() { _ = ctrl.Close() })
	if err := ctrl.SetIdentity("loja1"); err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	return &runner{ctrl: ctrl, out: out}, out
}

func backend(t *testing.T, orders []model.Order) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/status":
			_, _ = w.Write([]byte(`{"connected":true,"messagesCount":4,"contactsCount":2,"botEnabled":true}`))
		case "/orders":
			_ = json.NewEncoder(w).Encode(map[string]any{"orders": orders})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func TestStatusPrintsCounters(t *testing.T) {
	r, out, _ := newRunner(t, backend(t, nil))
	if err := r.run(context.Background(), []string{"status"}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"loja1", "Conectado", "Messages:  4", "Contacts:  2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestBotAlreadyInState(t *testing.T) {
	r, out, _ := newRunner(t, backend(t, nil))
	if err := r.run(context.Background(), []string{"bot", "on"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "already on") {
		t.Errorf("output = %q", out.String())
	}
}

func TestOrdersPartition(t *testing.T) {
	orders := []model.Order{
		{ID: "o1", Status: model.StatusPending, Total: 10, PaymentMethod: model.PaymentPix},
		{ID: "o2", Status: model.StatusDelivered, Total: 25.5},
	}
	r, out, _ := newRunner(t, backend(t, orders))
	if err := r.run(context.Background(), []string{"orders"}); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "o1") || strings.Contains(got, "o2 ") || !strings.Contains(got, "awaiting approval") {
		t.Errorf("active orders output:\n%s", got)
	}
	if !strings.Contains(got, "R$ 35,50") {
		t.Errorf("revenue missing:\n%s", got)
	}

	out.Reset()
	r.json = true
	if err := r.run(context.Background(), []string{"orders", "--completed"}); err != nil {
		t.Fatal(err)
	}
	var listed []model.Order
	if err := json.Unmarshal(out.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != "o2" {
		t.Errorf("completed = %+v", listed)
	}
}

func TestOrderDeleteHoldsForLaterInvocations(t *testing.T) {
	orders := []model.Order{
		{ID: "o1", Status: model.StatusPending, Total: 10},
		{ID: "o2", Status: model.StatusPending, Total: 20},
	}
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/update-status" || r.URL.Path == "/approve-pix" {
			t.Errorf("unexpected request %s", r.URL.Path)
		}
		backend(t, orders)(w, r)
	}
	r, _, docs := newRunner(t, handler)
	if err := r.run(context.Background(), []string{"order", "delete", "o1"}); err != nil {
		t.Fatal(err)
	}

	next, out := newRunnerWith(t, handler, docs)
	next.json = true
	if err := next.run(context.Background(), []string{"orders"}); err != nil {
		t.Fatal(err)
	}
	var listed []model.Order
	if err := json.Unmarshal(out.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != "o2" {
		t.Errorf("orders after delete = %+v", listed)
	}
}

func TestRulesAddWritesDocument(t *testing.T) {
	r, out, docs := newRunner(t, backend(t, nil))
	if err := r.run(context.Background(), []string{"rules", "add", "horario", "Abrimos", "às", "8h"}); err != nil {
		t.Fatal(err)
	}
	rules := r.ctrl.Snapshot().Rules
	if len(rules) != 1 || rules[0].Response != "Abrimos às 8h" {
		t.Fatalf("rules = %+v", rules)
	}
	keys, err := docs.Keys(context.Background(), docstore.RulesPath("loja1"))
	if err != nil || len(keys) != 1 || keys[0] != rules[0].ID {
		t.Errorf("stored rules = %v, %v", keys, err)
	}
	if !strings.Contains(out.String(), "added") {
		t.Errorf("output = %q", out.String())
	}
}

func TestUsageErrors(t *testing.T) {
	r, _, _ := newRunner(t, backend(t, nil))
	for _, args := range [][]string{
		{"bogus"},
		{"bot"},
		{"bot", "maybe"},
		{"messages"},
		{"order", "advance"},
		{"rules", "add", "only-keyword"},
		{"config"},
		{"media", "copy"},
	} {
		err := r.run(context.Background(), args)
		var u *usageError
		if !errors.As(err, &u) {
			t.Errorf("%v: err = %v, want usage error", args, err)
		}
	}
}
