package dashboard

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/matheus3301/wppbot/internal/api"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/docstore"
	"github.com/matheus3301/wppbot/internal/media"
	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/notify"
	"github.com/matheus3301/wppbot/internal/outbox"
	"github.com/matheus3301/wppbot/internal/status"
	"go.uber.org/zap"
)

// Backend is the bot HTTP API.
type Backend interface {
	Status(ctx context.Context, userID string) (*api.StatusResponse, error)
	QR(ctx context.Context, userID string) (*api.QRResponse, error)
	Connect(ctx context.Context, userID string) error
	Disconnect(ctx context.Context, userID string) error
	ToggleBot(ctx context.Context, userID string, enabled bool) error
	Contacts(ctx context.Context, userID string) ([]model.Contact, error)
	Messages(ctx context.Context, userID, from string) ([]model.Message, error)
	Orders(ctx context.Context, userID string) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, userID, orderID string, status model.OrderStatus) error
	ApprovePix(ctx context.Context, userID, orderID string) error
	HelpRequests(ctx context.Context, userID string) ([]model.HelpRequest, error)
	ResolveHelpRequest(ctx context.Context, userID, requestID string) error
}

// Docs reads and writes the document store. A nil value deletes the path.
type Docs interface {
	Set(ctx context.Context, path string, value any) error
	Get(ctx context.Context, path string) (docstore.Snapshot, error)
}

// Outbox queues document writes that are retried and compensated on failure.
type Outbox interface {
	Enqueue(op outbox.Op) (string, error)
}

// MediaStore keeps uploaded first-contact media.
type MediaStore interface {
	Put(ctx context.Context, uid, filename, mimeType string, r io.Reader, size int64) (*media.Object, error)
}

// Projection follows the document store for the current identity.
type Projection interface {
	Switch(userID string) error
}

// Options holds the controller's timers, limits and feature switches.
type Options struct {
	StatusInterval     time.Duration
	QRInterval         time.Duration
	ReloadInterval     time.Duration
	ReloadPause        time.Duration
	PairingTimeout     time.Duration
	PairingMaxAttempts int
	MaxMediaBytes      int64
	Features           config.Features
	// Passive controllers run no background polling. Callers refresh
	// explicitly; pairing still runs once Connect succeeds.
	Passive bool
}

// OptionsFromConfig maps the [poll], [media] and [features] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StatusInterval:     cfg.Poll.StatusInterval.Std(),
		QRInterval:         cfg.Poll.QRInterval.Std(),
		ReloadInterval:     cfg.Poll.ReloadInterval.Std(),
		ReloadPause:        cfg.Poll.ReloadPause.Std(),
		PairingTimeout:     cfg.Poll.PairingTimeout.Std(),
		PairingMaxAttempts: cfg.Poll.PairingMaxAttempts,
		MaxMediaBytes:      cfg.Media.MaxBytes,
		Features:           cfg.Features,
	}
}

func (o Options) withDefaults() Options {
	def := OptionsFromConfig(config.Default())
	if o.StatusInterval <= 0 {
		o.StatusInterval = def.StatusInterval
	}
	if o.QRInterval <= 0 {
		o.QRInterval = def.QRInterval
	}
	if o.ReloadInterval <= 0 {
		o.ReloadInterval = def.ReloadInterval
	}
	if o.ReloadPause < 0 {
		o.ReloadPause = 0
	}
	if o.PairingTimeout <= 0 {
		o.PairingTimeout = def.PairingTimeout
	}
	if o.PairingMaxAttempts <= 0 {
		o.PairingMaxAttempts = def.PairingMaxAttempts
	}
	return o
}

// Deps are the collaborators a Controller talks to. Media and Outbox may be
// nil, which disables uploads and makes rule writes synchronous.
type Deps struct {
	Backend Backend
	Docs    Docs
	Outbox  Outbox
	Media   MediaStore
	Notices *notify.Center
	Bus     *bus.Bus
	Logger  *zap.Logger
}

// Controller owns the dashboard state for one user at a time. Every change
// goes through dispatch and Reduce; pollers and commands only produce actions.
type Controller struct {
	backend Backend
	docs    Docs
	outbox  Outbox
	media   MediaStore
	notices *notify.Center
	bus     *bus.Bus
	logger  *zap.Logger
	opts    Options
	now     func() time.Time

	mu      sync.Mutex
	state   State
	changes chan struct{}
	connSig chan struct{}

	tasks      sync.Mutex
	identity   *identity
	projection Projection
	closed     bool

	idMu   sync.Mutex
	lastID int64

	// writes counts rule writes in flight per document path.
	writesMu sync.Mutex
	writes   map[string]int
}

// identity holds the loops running for one user.
type identity struct {
	uid     string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pairing *pairingTask
}

type pairingTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *pairingTask) stop() {
	p.cancel()
	<-p.done
}

func (id *identity) stop() {
	id.cancel()
	if id.pairing != nil {
		<-id.pairing.done
	}
	id.wg.Wait()
}

// New creates a controller with no identity.
func New(d Deps, opts Options) *Controller {
	if d.Notices == nil {
		d.Notices = notify.New()
	}
	if d.Bus == nil {
		d.Bus = bus.New()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Controller{
		backend: d.Backend,
		docs:    d.Docs,
		outbox:  d.Outbox,
		media:   d.Media,
		notices: d.Notices,
		bus:     d.Bus,
		logger:  d.Logger,
		opts:    opts,
		now:     time.Now,
		state:   NewState(""),
		changes: make(chan struct{}, 1),
		connSig: make(chan struct{}, 1),
		writes:  map[string]int{},
	}
}

// Attach registers the document projection switched along with the identity.
func (c *Controller) Attach(p Projection) {
	c.tasks.Lock()
	defer c.tasks.Unlock()
	c.projection = p
}

// Options returns the controller's options.
func (c *Controller) Options() Options { return c.opts }

// Notices returns the notification centre commands report to.
func (c *Controller) Notices() *notify.Center { return c.notices }

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Changes is signalled after every state change. Read Snapshot to see it.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Apply dispatches a for userID. It is dropped if the identity moved on.
func (c *Controller) Apply(userID string, a Action) {
	c.dispatch(Scoped{UserID: userID, Action: a})
}

// SetIdentity switches the dashboard to userID. Loops, pairing and
// subscriptions of the previous identity are stopped first. An empty id
// leaves the dashboard idle.
func (c *Controller) SetIdentity(userID string) error {
	c.tasks.Lock()
	defer c.tasks.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.identity != nil {
		c.identity.stop()
		c.identity = nil
	}
	c.dispatch(IdentityChanged{UserID: userID})

	var projErr error
	if c.projection != nil {
		projErr = c.projection.Switch(userID)
	}
	if userID == "" {
		return projErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := &identity{uid: userID, ctx: ctx, cancel: cancel}
	c.identity = id
	if c.opts.Passive {
		return projErr
	}
	id.wg.Add(2)
	go func() {
		defer id.wg.Done()
		c.statusLoop(ctx, userID)
	}()
	go func() {
		defer id.wg.Done()
		c.reloadLoop(ctx, userID)
	}()
	c.logger.Info("identity set", zap.String("user", userID))
	return projErr
}

// Close stops every loop and subscription. The controller cannot be reused.
func (c *Controller) Close() error {
	c.tasks.Lock()
	defer c.tasks.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.identity != nil {
		c.identity.stop()
		c.identity = nil
	}
	if c.projection != nil {
		return c.projection.Switch("")
	}
	return nil
}

func (c *Controller) dispatch(a Action) State {
	next, _ := c.dispatchIf(nil, a)
	return next
}

// dispatchIf applies a only when check accepts the current state. Check and
// update happen under one lock so two callers cannot both pass.
func (c *Controller) dispatchIf(check func(State) error, a Action) (State, error) {
	c.mu.Lock()
	prev := c.state
	if check != nil {
		if err := check(prev); err != nil {
			c.mu.Unlock()
			return prev, err
		}
	}
	c.state = Reduce(c.state, a)
	next := c.state
	c.mu.Unlock()

	if prev.Phase != next.Phase {
		c.bus.Emit(bus.PhaseChanged, status.PhaseChange{From: prev.Phase, To: next.Phase})
	}
	if prev.Status.Connected != next.Status.Connected {
		signal(c.connSig)
	}
	signal(c.changes)
	return next, nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (c *Controller) userID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.UserID
}

// nextRuleID returns a millisecond timestamp id, bumped when two rules are
// created within the same millisecond.
func (c *Controller) nextRuleID() int64 {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	id := c.now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}
