package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/api"
	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/docstore"
	"github.com/matheus3301/wppbot/internal/media"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/notify"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/status"
)

// fakeBackend records calls and serves canned responses.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	status   *api.StatusResponse
	qr       []*api.QRResponse
	qrErr    error
	orders   []model.Order
	contacts []model.Contact
	help     []model.HelpRequest
	cmdErr   error
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Status(context.Context, string) (*api.StatusResponse, error) {
	f.record("status")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		return &api.StatusResponse{}, nil
	}
	return f.status, nil
}

func (f *fakeBackend) QR(context.Context, string) (*api.QRResponse, error) {
	f.record("qr")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	if len(f.qr) == 0 {
		return &api.QRResponse{}, nil
	}
	resp := f.qr[0]
	if len(f.qr) > 1 {
		f.qr = f.qr[1:]
	}
	return resp, nil
}

func (f *fakeBackend) Connect(context.Context, string) error {
	f.record("connect")
	return f.cmdErr
}

func (f *fakeBackend) Disconnect(context.Context, string) error {
	f.record("disconnect")
	return f.cmdErr
}

func (f *fakeBackend) ToggleBot(_ context.Context, _ string, enabled bool) error {
	f.record("toggle")
	if f.cmdErr != nil {
		return f.cmdErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		f.status = &api.StatusResponse{}
	}
	f.status.BotEnabled = &enabled
	return nil
}

func (f *fakeBackend) Contacts(context.Context, string) ([]model.Contact, error) {
	f.record("contacts")
	return f.contacts, nil
}

func (f *fakeBackend) Messages(context.Context, string, string) ([]model.Message, error) {
	f.record("messages")
	return nil, nil
}

func (f *fakeBackend) Orders(context.Context, string) ([]model.Order, error) {
	f.record("orders")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Order(nil), f.orders...), nil
}

func (f *fakeBackend) UpdateOrderStatus(context.Context, string, string, model.OrderStatus) error {
	f.record("update-status")
	return f.cmdErr
}

func (f *fakeBackend) ApprovePix(context.Context, string, string) error {
	f.record("approve-pix")
	return f.cmdErr
}

func (f *fakeBackend) HelpRequests(context.Context, string) ([]model.HelpRequest, error) {
	f.record("help")
	return f.help, nil
}

func (f *fakeBackend) ResolveHelpRequest(context.Context, string, string) error {
	f.record("resolve")
	return f.cmdErr
}

// memDocs is an in-memory document store keyed by full path. err fails every
// Set; reads keep working.
type memDocs struct {
	mu   sync.Mutex
	docs map[string]any
	err  error
}

func (m *memDocs) Set(_ context.Context, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.docs == nil {
		m.docs = map[string]any{}
	}
	if value == nil {
		delete(m.docs, path)
	} else {
		m.docs[path] = value
	}
	return nil
}

// Get assembles the subtree at path from the documents stored beneath it.
func (m *memDocs) Get(_ context.Context, path string) (docstore.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := docstore.Snapshot{Path: path}
	v, ok := m.docs[path]
	if !ok {
		tree := map[string]any{}
		for p, val := range m.docs {
			rest, found := strings.CutPrefix(p, path+"/")
			if !found {
				continue
			}
			segs := strings.Split(rest, "/")
			node := tree
			for _, seg := range segs[:len(segs)-1] {
				child, isMap := node[seg].(map[string]any)
				if !isMap {
					child = map[string]any{}
					node[seg] = child
				}
				node = child
			}
			node[segs[len(segs)-1]] = val
		}
		if len(tree) == 0 {
			return snap, nil
		}
		v = tree
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	snap.Exists, snap.Value = true, raw
	return snap, nil
}

func (m *memDocs) value(path string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[path]
	return v, ok
}

func (m *memDocs) seed(path string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[string]any{}
	}
	m.docs[path] = value
}

func testOptions() Options {
	opts := OptionsFromConfig(config.Default())
	opts.StatusInterval = time.Hour
	opts.ReloadInterval = time.Hour
	opts.QRInterval = 5 * time.Millisecond
	opts.ReloadPause = 0
	return opts
}

type harness struct {
	c       *Controller
	backend *fakeBackend
	docs    *memDocs
	notices *notify.Center
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{backend: &fakeBackend{}, docs: &memDocs{}, notices: notify.New()}
	h.c = New(Deps{Backend: h.backend, Docs: h.docs, Notices: h.notices}, opts)
	t.Cleanup(func() { _ = h.c.Close() })
	return h
}

func (h *harness) lastNotice(t *testing.T) notify.Notice {
	t.Helper()
	n, ok := h.notices.Last()
	if !ok {
		t.Fatal("no notice posted")
	}
	return n
}

// connect points the harness at uid with a backend reporting a live session.
func (h *harness) connect(t *testing.T, uid string) {
	t.Helper()
	connected := true
	h.backend.mu.Lock()
	h.backend.status = &api.StatusResponse{Connected: &connected}
	h.backend.mu.Unlock()
	if err := h.c.SetIdentity(uid); err != nil {
		t.Fatal(err)
	}
	eventually(t, "connected", func() bool { return h.c.Snapshot().Status.Connected })
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCommandsWithoutIdentityMakeNoRequest(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()

	commands := map[string]func() error{
		"connect":     func() error { return h.c.Connect(ctx) },
		"disconnect":  func() error { return h.c.Disconnect(ctx) },
		"toggle bot":  func() error { return h.c.ToggleBot(ctx) },
		"save config": func() error { return h.c.SaveConfig(ctx) },
		"add rule":    func() error { _, err := h.c.AddRule(ctx, "k", "r"); return err },
		"toggle rule": func() error { return h.c.ToggleRule(ctx, "1") },
		"delete rule": func() error { return h.c.DeleteRule(ctx, "1") },
		"contacts":    func() error { return h.c.LoadContacts(ctx) },
		"messages":    func() error { return h.c.LoadMessages(ctx, "551") },
		"orders":      func() error { return h.c.LoadOrders(ctx) },
		"help":        func() error { return h.c.LoadHelpRequests(ctx) },
		"approve":     func() error { return h.c.ApprovePix(ctx, "o1") },
		"status":      func() error { return h.c.UpdateOrderStatus(ctx, "o1", model.StatusReady) },
		"resolve":     func() error { return h.c.ResolveHelpRequest(ctx, "h1") },
		"delete":      func() error { return h.c.DeleteOrder(ctx, "o1") },
		"upload": func() error {
			_, err := h.c.UploadMedia(ctx, "a.png", "image/png", strings.NewReader("x"), 1)
			return err
		},
	}
	for name, run := range commands {
		t.Run(name, func(t *testing.T) {
			err := run()
			if !errors.Is(err, ErrNoIdentity) {
				t.Errorf("error = %v, want ErrNoIdentity", err)
			}
			if n := h.lastNotice(t); n.Level != notify.Warn {
				t.Errorf("notice level = %s, want warn", n.Level)
			}
		})
	}
	if calls := h.backend.Calls(); len(calls) != 0 {
		t.Errorf("backend calls = %v, want none", calls)
	}
	if len(h.docs.docs) != 0 {
		t.Errorf("document writes = %v, want none", h.docs.docs)
	}
}

func TestStatusPollAppliesResponse(t *testing.T) {
	h := newHarness(t, testOptions())
	connected, messages, contacts := true, 5, 2
	h.backend.status = &api.StatusResponse{Connected: &connected, MessagesCount: &messages, ContactsCount: &contacts}

	if err := h.c.SetIdentity("u1"); err != nil {
		t.Fatal(err)
	}
	h.c.Apply("u1", PairingStarted{})
	h.c.Apply("u1", PairingCodeReceived{Code: "stale"})

	if err := h.c.RefreshStatus(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := h.c.Snapshot()
	if s.Phase != status.Connected || !s.Status.Connected {
		t.Errorf("phase = %s, connected = %v", s.Phase, s.Status.Connected)
	}
	if s.Status.MessagesCount != 5 || s.Status.ContactsCount != 2 || !s.Status.BotEnabled {
		t.Errorf("status = %+v", s.Status)
	}
	if s.PairingCode != "" {
		t.Errorf("pairing code = %q, want cleared", s.PairingCode)
	}
}

func TestSetIdentityPollsImmediately(t *testing.T) {
	h := newHarness(t, testOptions())
	if err := h.c.SetIdentity("u1"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "first status poll", func() bool { return h.backend.count("status") >= 1 })
	if s := h.c.Snapshot(); s.UserID != "u1" {
		t.Errorf("UserID = %q", s.UserID)
	}
}

func TestConnectPairingStoresCodeAndKeepsPolling(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.qr = []*api.QRResponse{{QRCode: "abc"}, {}, {QRCode: "def"}}
	if err := h.c.SetIdentity("u1"); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	eventually(t, "qr code stored", func() bool { return h.c.Snapshot().PairingCode != "" })
	eventually(t, "polling continues after an empty response", func() bool { return h.backend.count("qr") >= 3 })
	if s := h.c.Snapshot(); s.Phase != status.Pairing || s.PairingCode == "" {
		t.Errorf("phase = %s, code = %q", s.Phase, s.PairingCode)
	}
	if !h.c.PairingActive() {
		t.Error("pairing task should still run")
	}
}

func TestEmptyQRShowsNoCode(t *testing.T) {
	h := newHarness(t, testOptions())
	if err := h.c.SetIdentity("u1"); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "several qr polls", func() bool { return h.backend.count("qr") >= 3 })
	if code := h.c.Snapshot().PairingCode; code != "" {
		t.Errorf("pairing code = %q, want none", code)
	}
}

func TestPairingSucceeds(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.qr = []*api.QRResponse{{QRCode: "abc"}, {Connected: true}}
	_ = h.c.SetIdentity("u1")
	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "connected", func() bool { return h.c.Snapshot().Phase == status.Connected })
	eventually(t, "pairing task done", func() bool { return !h.c.PairingActive() })
	if s := h.c.Snapshot(); s.PairingCode != "" || !s.Status.Connected {
		t.Errorf("state = %+v", s)
	}
	if n := h.lastNotice(t); n.Level != notify.Success {
		t.Errorf("notice = %+v", n)
	}
}

func TestPairingBoundedByAttempts(t *testing.T) {
	opts := testOptions()
	opts.PairingMaxAttempts = 3
	h := newHarness(t, opts)
	_ = h.c.SetIdentity("u1")
	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "pairing gives up", func() bool { return !h.c.PairingActive() })
	if n := h.backend.count("qr"); n != 3 {
		t.Errorf("qr polls = %d, want 3", n)
	}
	if s := h.c.Snapshot(); s.Phase != status.Disconnected {
		t.Errorf("phase = %s, want DISCONNECTED", s.Phase)
	}
	if n := h.lastNotice(t); n.Level != notify.Warn {
		t.Errorf("notice = %+v", n)
	}
}

func TestPairingBoundedByTimeout(t *testing.T) {
	opts := testOptions()
	opts.PairingTimeout = 30 * time.Millisecond
	opts.QRInterval = 10 * time.Millisecond
	h := newHarness(t, opts)
	_ = h.c.SetIdentity("u1")
	_ = h.c.Connect(context.Background())
	eventually(t, "pairing times out", func() bool { return !h.c.PairingActive() })
	if s := h.c.Snapshot(); s.Phase == status.Pairing {
		t.Error("still pairing after timeout")
	}
}

func TestPairingAbortsOnError(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.qrErr = errors.New("connection refused")
	_ = h.c.SetIdentity("u1")
	_ = h.c.Connect(context.Background())
	eventually(t, "pairing aborted", func() bool { return !h.c.PairingActive() })
	if n := h.lastNotice(t); n.Level != notify.Error {
		t.Errorf("notice = %+v", n)
	}
	if n := h.backend.count("qr"); n != 1 {
		t.Errorf("qr polls = %d, want 1", n)
	}
}

func TestPairingCancelledOnIdentityChangeAndClose(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	_ = h.c.Connect(context.Background())
	if !h.c.PairingActive() {
		t.Fatal("pairing not running")
	}
	_ = h.c.SetIdentity("u2")
	if h.c.PairingActive() {
		t.Error("pairing survived identity change")
	}

	_ = h.c.Connect(context.Background())
	if err := h.c.Close(); err != nil {
		t.Fatal(err)
	}
	polls := h.backend.count("qr")
	time.Sleep(30 * time.Millisecond)
	if h.backend.count("qr") != polls {
		t.Error("pairing kept polling after Close")
	}
	if err := h.c.SetIdentity("u3"); !errors.Is(err, ErrClosed) {
		t.Errorf("SetIdentity after Close = %v", err)
	}
}

func TestConnectFailureSurfacesServerMessage(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.cmdErr = &api.AppError{Op: "connect", Message: "limite atingido"}
	_ = h.c.SetIdentity("u1")
	if err := h.c.Connect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	n := h.lastNotice(t)
	if n.Level != notify.Error || n.Text != "limite atingido" {
		t.Errorf("notice = %+v", n)
	}
	s := h.c.Snapshot()
	if s.Phase == status.Pairing || s.IsBusy(TaskConnect) || h.c.PairingActive() {
		t.Errorf("state after failure = %s busy=%v", s.Phase, s.IsBusy(TaskConnect))
	}
}

func TestToggleBotWritesConfigFlag(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	if err := h.c.ToggleBot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := h.c.Snapshot(); s.Status.BotEnabled {
		t.Error("bot still enabled")
	}
	v, ok := h.docs.value(docstore.ConfigFieldPath("u1", "botEnabled"))
	if !ok || v != false {
		t.Errorf("botEnabled doc = %v, %v", v, ok)
	}
}

func TestToggleBotFailureLeavesState(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.cmdErr = errors.New("timeout")
	_ = h.c.SetIdentity("u1")
	_ = h.c.ToggleBot(context.Background())
	if s := h.c.Snapshot(); !s.Status.BotEnabled || s.IsBusy(TaskToggleBot) {
		t.Errorf("state = %+v", s.Status)
	}
	if _, ok := h.docs.value(docstore.ConfigFieldPath("u1", "botEnabled")); ok {
		t.Error("document written after failure")
	}
}

func TestSaveConfigWritesWholeDocument(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	h.c.SetPrompt("novo prompt")
	h.c.SetFirstContact(false, "oi")
	if err := h.c.SaveConfig(context.Background()); err != nil {
		t.Fatal(err)
	}
	v, ok := h.docs.value(docstore.ConfigPath("u1"))
	cfg, isCfg := v.(model.BotConfig)
	if !ok || !isCfg {
		t.Fatalf("config doc = %#v", v)
	}
	if cfg.BotPrompt != "novo prompt" || cfg.FirstContact.Enabled || cfg.FirstContact.Message != "oi" || !cfg.BotEnabled {
		t.Errorf("config = %+v", cfg)
	}
}

func TestAddRuleAppendsWithoutReordering(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	existing := []model.Rule{{ID: "1", Keyword: "a", Response: "A"}, {ID: "2", Keyword: "b", Response: "B", Active: true}}
	h.c.Apply("u1", RulesProjected{Rules: existing})

	rule, err := h.c.AddRule(context.Background(), "k", "r")
	if err != nil {
		t.Fatal(err)
	}
	rules := h.c.Snapshot().Rules
	if len(rules) != 3 {
		t.Fatalf("rules = %+v", rules)
	}
	if rules[0] != existing[0] || rules[1] != existing[1] {
		t.Errorf("existing rules disturbed: %+v", rules[:2])
	}
	got := rules[2]
	if got.Keyword != "k" || got.Response != "r" || !got.Active || got.ID != rule.ID {
		t.Errorf("new rule = %+v", got)
	}
	for _, r := range existing {
		if r.ID == got.ID {
			t.Errorf("id %s not unique", got.ID)
		}
	}
	if _, ok := h.docs.value(docstore.RulePath("u1", rule.ID)); !ok {
		t.Error("rule not written")
	}
}

func TestAddRuleIDsUnique(t *testing.T) {
	h := newHarness(t, testOptions())
	fixed := time.UnixMilli(1700000000000)
	h.c.now = func() time.Time { return fixed }
	_ = h.c.SetIdentity("u1")
	a, _ := h.c.AddRule(context.Background(), "a", "A")
	b, _ := h.c.AddRule(context.Background(), "b", "B")
	if a.ID == b.ID || a.ID != "1700000000000" {
		t.Errorf("ids = %s, %s", a.ID, b.ID)
	}
}

func TestAddRuleValidation(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	if _, err := h.c.AddRule(context.Background(), " ", "r"); !errors.Is(err, ErrMissingField) {
		t.Errorf("error = %v, want ErrMissingField", err)
	}
	if len(h.c.Snapshot().Rules) != 0 {
		t.Error("rule added despite validation failure")
	}
}

func TestRuleWriteFailureIsCompensated(t *testing.T) {
	h := newHarness(t, testOptions())
	h.docs.err = errors.New("store offline")
	sender := outbox.NewSender(h.docs, nil, nil, outbox.Options{MaxAttempts: 2, Backoff: time.Millisecond})
	sender.Start(context.Background())
	defer sender.Stop()
	h.c.outbox = sender

	h.docs.seed(docstore.RulePath("u1", "1"), model.Rule{Keyword: "a", Active: true})
	_ = h.c.SetIdentity("u1")
	h.c.Apply("u1", RulesProjected{Rules: []model.Rule{{ID: "1", Keyword: "a", Active: true}}})

	if _, err := h.c.AddRule(context.Background(), "k", "r"); err != nil {
		t.Fatal(err)
	}
	if err := h.c.ToggleRule(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sender.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	s := h.c.Snapshot()
	if len(s.Rules) != 1 || !s.Rules[0].Active {
		t.Errorf("rules after compensation = %+v", s.Rules)
	}
	if s.PendingWrites != 0 {
		t.Errorf("PendingWrites = %d", s.PendingWrites)
	}
	if n := h.lastNotice(t); n.Level != notify.Error {
		t.Errorf("notice = %+v", n)
	}
}

func TestDeleteRuleWritesNull(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	rule, _ := h.c.AddRule(context.Background(), "k", "r")
	if err := h.c.DeleteRule(context.Background(), rule.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.docs.value(docstore.RulePath("u1", rule.ID)); ok {
		t.Error("rule document still present")
	}
	if len(h.c.Snapshot().Rules) != 0 {
		t.Error("rule still listed")
	}
}

func TestLoadCommandsRequireConnection(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	ctx := context.Background()
	for name, run := range map[string]func(context.Context) error{
		"contacts": h.c.LoadContacts,
		"orders":   h.c.LoadOrders,
		"help":     h.c.LoadHelpRequests,
	} {
		if err := run(ctx); !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s: error = %v, want ErrNotConnected", name, err)
		}
	}
	for _, call := range []string{"contacts", "orders", "help"} {
		if h.backend.count(call) != 0 {
			t.Errorf("%s requested while disconnected", call)
		}
	}
}

func TestDeletedOrderNotRecoveredByPolling(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.orders = []model.Order{
		{ID: "o1", Total: 10, Status: model.StatusPending},
		{ID: "o2", Total: 5, Status: model.StatusDelivered},
	}
	h.connect(t, "u1")
	ctx := context.Background()
	if err := h.c.LoadOrders(ctx); err != nil {
		t.Fatal(err)
	}

	if err := h.c.DeleteOrder(ctx, "o1"); err != nil {
		t.Fatal(err)
	}
	if err := h.c.LoadOrders(ctx); err != nil {
		t.Fatal(err)
	}
	orders := h.c.Snapshot().Orders
	if _, ok := FindOrder(orders, "o1"); ok {
		t.Error("deleted order reappeared")
	}
	if len(ActiveOrders(orders)) != 0 || TotalRevenue(orders) != 5 {
		t.Errorf("derived lists include deleted order: %+v", orders)
	}
}

func TestOrderCommandsReload(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.orders = []model.Order{{ID: "o1", Status: model.StatusReady}}
	_ = h.c.SetIdentity("u1")
	h.c.Apply("u1", OrdersLoaded{Orders: h.backend.orders})
	ctx := context.Background()

	if err := h.c.AdvanceOrder(ctx, "o1"); err != nil {
		t.Fatal(err)
	}
	if err := h.c.ApprovePix(ctx, "o1"); err != nil {
		t.Fatal(err)
	}
	if h.backend.count("update-status") != 1 || h.backend.count("approve-pix") != 1 || h.backend.count("orders") != 2 {
		t.Errorf("calls = %v", h.backend.Calls())
	}
	if s := h.c.Snapshot(); len(s.OrderBusy) != 0 {
		t.Errorf("order busy flags left set: %v", s.OrderBusy)
	}
}

func TestApprovePixFailureKeepsOrders(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.cmdErr = &api.AppError{Op: "approve pix"}
	_ = h.c.SetIdentity("u1")
	h.c.Apply("u1", OrdersLoaded{Orders: []model.Order{{ID: "o1"}}})
	if err := h.c.ApprovePix(context.Background(), "o1"); err == nil {
		t.Fatal("expected error")
	}
	if n := h.lastNotice(t); n.Text != "Erro ao aprovar pagamento" {
		t.Errorf("notice = %q", n.Text)
	}
	if h.backend.count("orders") != 0 {
		t.Error("orders reloaded after failure")
	}
}

func TestResolveHelpRequestReloads(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.help = []model.HelpRequest{{ID: "h1", Resolved: true}}
	_ = h.c.SetIdentity("u1")
	if err := h.c.ResolveHelpRequest(context.Background(), "h1"); err != nil {
		t.Fatal(err)
	}
	s := h.c.Snapshot()
	if len(s.HelpRequests) != 1 || len(UnresolvedHelp(s.HelpRequests)) != 0 {
		t.Errorf("help requests = %+v", s.HelpRequests)
	}
}

func TestReloadStartsWhenConnected(t *testing.T) {
	h := newHarness(t, testOptions())
	h.connect(t, "u1")
	eventually(t, "reload of all collections", func() bool {
		return h.backend.count("contacts") == 1 && h.backend.count("orders") == 1 && h.backend.count("help") == 1
	})
}

func TestReloadSkipsDisabledFeatures(t *testing.T) {
	opts := testOptions()
	opts.Features.Contacts = false
	h := newHarness(t, opts)
	h.connect(t, "u1")
	eventually(t, "reload", func() bool { return h.backend.count("help") == 1 })
	if h.backend.count("contacts") != 0 {
		t.Error("disabled contacts were loaded")
	}
}

func TestUploadRejectsOversizeBeforeStore(t *testing.T) {
	h := newHarness(t, testOptions())
	store := &countingMedia{}
	h.c.media = store
	_ = h.c.SetIdentity("u1")

	_, err := h.c.UploadMedia(context.Background(), "big.mp4", "video/mp4", strings.NewReader(""), 16<<20+1)
	if !errors.Is(err, ErrMediaTooLarge) {
		t.Fatalf("error = %v, want ErrMediaTooLarge", err)
	}
	if store.puts != 0 {
		t.Errorf("store called %d times", store.puts)
	}
	if refs := h.c.Snapshot().Config.FirstContact.Media; len(refs) != 0 {
		t.Errorf("media list changed: %+v", refs)
	}
	if n := h.lastNotice(t); n.Level != notify.Warn || !strings.Contains(n.Text, "16MB") {
		t.Errorf("notice = %+v", n)
	}
}

func TestUploadAppendsRemoteRef(t *testing.T) {
	h := newHarness(t, testOptions())
	store, err := media.Open(filepath.Join(t.TempDir(), "media.db"), 16<<20, "http://127.0.0.1:8787")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Close() }()
	h.c.media = store
	_ = h.c.SetIdentity("u1")

	ref, err := h.c.UploadMedia(context.Background(), "menu.png", "image/png", strings.NewReader("png"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Type != model.MediaRemote || ref.URL == "" || ref.Preview != ref.URL || ref.Filename != "menu.png" || ref.MimeType != "image/png" {
		t.Errorf("ref = %+v", ref)
	}
	refs := h.c.Snapshot().Config.FirstContact.Media
	if len(refs) != 1 || refs[0] != ref {
		t.Errorf("media = %+v", refs)
	}
	if err := h.c.RemoveMedia(0); err != nil {
		t.Fatal(err)
	}
	if len(h.c.Snapshot().Config.FirstContact.Media) != 0 {
		t.Error("media not removed")
	}
}

type countingMedia struct{ puts int }

func (m *countingMedia) Put(context.Context, string, string, string, io.Reader, int64) (*media.Object, error) {
	m.puts++
	return &media.Object{}, nil
}

func TestBusyFlagBlocksConcurrentCommand(t *testing.T) {
	h := newHarness(t, testOptions())
	_ = h.c.SetIdentity("u1")
	h.c.Apply("u1", BusySet{Task: TaskSaveConfig, On: true})
	if err := h.c.SaveConfig(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("error = %v, want ErrBusy", err)
	}
}

func TestChangesSignalled(t *testing.T) {
	h := newHarness(t, testOptions())
	h.c.SetShowCompleted(true)
	select {
	case <-h.c.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change signal")
	}
	if !h.c.Snapshot().ShowCompleted {
		t.Error("ShowCompleted not set")
	}
}

func TestPassiveControllerDoesNotPoll(t *testing.T) {
	opts := testOptions()
	opts.Passive = true
	h := newHarness(t, opts)
	if err := h.c.SetIdentity("u1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if calls := h.backend.Calls(); len(calls) != 0 {
		t.Fatalf("passive controller polled: %v", calls)
	}
	if err := h.c.RefreshStatus(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "pairing poll", func() bool { return h.backend.count("qr") >= 1 })
}

func TestQueuedRuleWritesSettleOnStoredValue(t *testing.T) {
	h := newHarness(t, testOptions())
	h.docs.seed(docstore.RulePath("u1", "1"), model.Rule{Keyword: "a", Response: "A", Active: true})
	h.docs.err = errors.New("store offline")
	sender := outbox.NewSender(h.docs, nil, nil, outbox.Options{MaxAttempts: 1})
	h.c.outbox = sender

	_ = h.c.SetIdentity("u1")
	h.c.Apply("u1", RulesProjected{Rules: []model.Rule{{ID: "1", Keyword: "a", Response: "A", Active: true}}})
	ctx := context.Background()
	for range 2 {
		if err := h.c.ToggleRule(ctx, "1"); err != nil {
			t.Fatal(err)
		}
	}

	sender.Start(ctx)
	defer sender.Stop()
	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sender.Flush(flushCtx); err != nil {
		t.Fatal(err)
	}

	rules := h.c.Snapshot().Rules
	if len(rules) != 1 || !rules[0].Active || rules[0].Response != "A" {
		t.Errorf("rules = %+v, want the stored rule back", rules)
	}
	if n := h.lastNotice(t); n.Level != notify.Error {
		t.Errorf("notice = %+v", n)
	}
}

func TestDeletedOrderStaysDeletedAcrossSessions(t *testing.T) {
	h := newHarness(t, testOptions())
	h.backend.orders = []model.Order{
		{ID: "o1", Total: 10, Status: model.StatusPending},
		{ID: "o2", Total: 5, Status: model.StatusPending},
	}
	ctx := context.Background()
	h.connect(t, "u1")
	if err := h.c.DeleteOrder(ctx, "o1"); err != nil {
		t.Fatal(err)
	}
	if v, ok := h.docs.value(docstore.DeletedOrderPath("u1", "o1")); !ok || v != true {
		t.Errorf("tombstone = %v, %v", v, ok)
	}

	_ = h.c.SetIdentity("u2")
	h.connect(t, "u1")
	if err := h.c.LoadOrders(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := FindOrder(h.c.Snapshot().Orders, "o1"); ok {
		t.Error("deleted order back after switching identity")
	}

	opts := testOptions()
	opts.Passive = true
	other := New(Deps{Backend: h.backend, Docs: h.docs}, opts)
	t.Cleanup(func() { _ = other.Close() })
	_ = other.SetIdentity("u1")
	if err := other.RefreshStatus(ctx); err != nil {
		t.Fatal(err)
	}
	if err := other.LoadOrders(ctx); err != nil {
		t.Fatal(err)
	}
	orders := other.Snapshot().Orders
	if _, ok := FindOrder(orders, "o1"); ok || len(orders) != 1 {
		t.Errorf("second controller orders = %+v", orders)
	}
}

func TestReconnectFromConnectedShowsNewCode(t *testing.T) {
	opts := testOptions()
	opts.PairingMaxAttempts = 1000
	h := newHarness(t, opts)
	h.connect(t, "u1")
	h.backend.mu.Lock()
	h.backend.qr = []*api.QRResponse{{QRCode: "abc"}}
	h.backend.mu.Unlock()

	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "new code shown", func() bool {
		s := h.c.Snapshot()
		return s.Phase == status.Pairing && s.PairingCode == "abc"
	})
	eventually(t, "pairing keeps polling", func() bool { return h.backend.count("qr") >= 2 })
	if !h.c.PairingActive() {
		t.Error("pairing stopped")
	}
}

func TestFailedDisconnectKeepsPairing(t *testing.T) {
	opts := testOptions()
	opts.PairingMaxAttempts = 1000
	h := newHarness(t, opts)
	h.backend.qr = []*api.QRResponse{{QRCode: "abc"}}
	_ = h.c.SetIdentity("u1")
	if err := h.c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "code shown", func() bool { return h.c.Snapshot().PairingCode == "abc" })

	h.backend.cmdErr = errors.New("timeout")
	if err := h.c.Disconnect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	s := h.c.Snapshot()
	if s.Phase != status.Pairing || s.PairingCode != "abc" || !h.c.PairingActive() {
		t.Errorf("after failed disconnect: phase=%s code=%q active=%v", s.Phase, s.PairingCode, h.c.PairingActive())
	}

	h.backend.cmdErr = nil
	if err := h.c.Disconnect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := h.c.Snapshot(); s.Phase != status.Disconnected || h.c.PairingActive() {
		t.Errorf("after disconnect: phase=%s active=%v", s.Phase, h.c.PairingActive())
	}
}

func TestDisabledFeaturesRejectCommands(t *testing.T) {
	opts := testOptions()
	opts.Features.Rules = false
	opts.Features.Orders = false
	opts.Features.HelpRequests = false
	h := newHarness(t, opts)
	_ = h.c.SetIdentity("u1")
	h.c.Apply("u1", RulesProjected{Rules: []model.Rule{{ID: "1", Keyword: "a"}}})
	h.c.Apply("u1", OrdersLoaded{Orders: []model.Order{{ID: "o1", Status: model.StatusPending}}})
	ctx := context.Background()

	for name, run := range map[string]func() error{
		"toggle rule":  func() error { return h.c.ToggleRule(ctx, "1") },
		"delete rule":  func() error { return h.c.DeleteRule(ctx, "1") },
		"order status": func() error { return h.c.UpdateOrderStatus(ctx, "o1", model.StatusReady) },
		"advance":      func() error { return h.c.AdvanceOrder(ctx, "o1") },
		"approve":      func() error { return h.c.ApprovePix(ctx, "o1") },
		"delete order": func() error { return h.c.DeleteOrder(ctx, "o1") },
		"resolve":      func() error { return h.c.ResolveHelpRequest(ctx, "h1") },
	} {
		if err := run(); !errors.Is(err, ErrDisabled) {
			t.Errorf("%s: error = %v, want ErrDisabled", name, err)
		}
	}
	for _, call := range h.backend.Calls() {
		if call != "status" {
			t.Errorf("request %s made for a disabled feature", call)
		}
	}
	if len(h.docs.docs) != 0 {
		t.Errorf("document writes = %v", h.docs.docs)
	}
	if s := h.c.Snapshot(); len(s.Rules) != 1 || len(s.Orders) != 1 {
		t.Errorf("state changed: rules=%+v orders=%+v", s.Rules, s.Orders)
	}
}
