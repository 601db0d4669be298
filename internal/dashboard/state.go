package dashboard

import (
	"slices"

	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/status"
)

// Task names a command whose busy flag disables its control while it runs.
type Task string

const (
	TaskConnect      Task = "connect"
	TaskDisconnect   Task = "disconnect"
	TaskToggleBot    Task = "toggle_bot"
	TaskSaveConfig   Task = "save_config"
	TaskContacts     Task = "contacts"
	TaskMessages     Task = "messages"
	TaskOrders       Task = "orders"
	TaskHelpRequests Task = "help_requests"
	TaskUpload       Task = "upload"
	TaskOrder        Task = "order"
	TaskResolve      Task = "resolve"
)

// RuleDraft is the rule being typed in before it is added.
type RuleDraft struct {
	Keyword  string
	Response string
}

// State is everything the dashboard renders for one user.
type State struct {
	UserID string
	Phase  status.Phase
	Status model.ConnectionStatus
	// PairingCode is the QR payload while a pairing attempt is running.
	PairingCode string

	Config       model.BotConfig
	ConfigLoaded bool
	Rules        []model.Rule
	RuleDraft    RuleDraft

	Contacts        []model.Contact
	SelectedContact string
	Messages        []model.Message
	Orders          []model.Order
	HelpRequests    []model.HelpRequest
	ShowCompleted   bool

	// Busy holds per-command flags; OrderBusy and ResolveBusy hold the ids
	// currently being acted upon.
	Busy        map[Task]bool
	OrderBusy   map[string]bool
	ResolveBusy map[string]bool
	// Deleted lists order ids removed from the store, including tombstones
	// written by other processes. Polls never bring them back.
	Deleted map[string]bool
	// PendingWrites counts rule writes not yet confirmed by the store.
	PendingWrites int
}

// NewState returns the state shown before anything has been loaded.
func NewState(userID string) State {
	return State{
		UserID:      userID,
		Phase:       status.Unknown,
		Status:      model.DefaultStatus(),
		Config:      model.DefaultConfig(),
		Busy:        map[Task]bool{},
		OrderBusy:   map[string]bool{},
		ResolveBusy: map[string]bool{},
		Deleted:     map[string]bool{},
	}
}

// IsBusy reports whether task is running.
func (s State) IsBusy(t Task) bool { return s.Busy[t] }

// Pairing reports whether a pairing attempt is in progress.
func (s State) Pairing() bool { return s.Phase == status.Pairing }

// Clone returns a deep copy safe to hand to another goroutine.
func (s State) Clone() State {
	out := s
	out.Config.FirstContact.Media = slices.Clone(s.Config.FirstContact.Media)
	out.Rules = slices.Clone(s.Rules)
	out.Contacts = slices.Clone(s.Contacts)
	out.Messages = slices.Clone(s.Messages)
	out.Orders = make([]model.Order, len(s.Orders))
	for i, o := range s.Orders {
		o.Items = slices.Clone(o.Items)
		out.Orders[i] = o
	}
	if s.Orders == nil {
		out.Orders = nil
	}
	out.HelpRequests = slices.Clone(s.HelpRequests)
	out.Busy = cloneSet(s.Busy)
	out.OrderBusy = cloneSet(s.OrderBusy)
	out.ResolveBusy = cloneSet(s.ResolveBusy)
	out.Deleted = cloneSet(s.Deleted)
	return out
}

func cloneSet[K comparable](m map[K]bool) map[K]bool {
	out := make(map[K]bool, len(m))
	for k, v := range m {
		if v {
			out[k] = true
		}
	}
	return out
}

func (s State) ruleIndex(id string) int {
	return slices.IndexFunc(s.Rules, func(r model.Rule) bool { return r.ID == id })
}
