package dashboard

import "github.com/matheus3301/wppbot/internal/model"

// Action is a state transition applied by Reduce.
type Action interface {
	isAction()
}

// Scoped applies Action only while UserID is still the current identity.
// Results of requests issued for a previous identity are dropped.
type Scoped struct {
	UserID string
	Action Action
}

// IdentityChanged resets the state for a new user.
type IdentityChanged struct{ UserID string }

// StatusReceived carries a status poll result.
type StatusReceived struct{ Status model.ConnectionStatus }

// PairingStarted enters the pairing phase and clears any old code.
type PairingStarted struct{}

// PairingCodeReceived stores a QR payload.
type PairingCodeReceived struct{ Code string }

// PairingSucceeded marks the session connected.
type PairingSucceeded struct{}

// PairingEnded leaves the pairing phase without connecting.
type PairingEnded struct{}

// Disconnected marks the session closed after a successful disconnect.
type Disconnected struct{}

// BusySet raises or clears a command's busy flag.
type BusySet struct {
	Task Task
	On   bool
}

// OrderBusySet raises or clears the busy flag of one order.
type OrderBusySet struct {
	OrderID string
	On      bool
}

// ResolveBusySet raises or clears the busy flag of one help request.
type ResolveBusySet struct {
	RequestID string
	On        bool
}

// BotToggled records a confirmed bot on/off change.
type BotToggled struct{ Enabled bool }

// ConfigPatch is a config snapshot with absent fields left nil.
type ConfigPatch struct {
	BotEnabled          *bool
	BotPrompt           *string
	FirstContactEnabled *bool
	FirstContactMessage *string
	FirstContactMedia   []model.MediaRef
	HasMedia            bool
}

// ConfigMerged merges present fields of a config snapshot.
type ConfigMerged struct{ Patch ConfigPatch }

// ConfigEdited replaces the locally edited config.
type ConfigEdited struct{ Config model.BotConfig }

// MediaAppended adds an uploaded file to the first-contact media.
type MediaAppended struct{ Ref model.MediaRef }

// MediaRemoved drops the first-contact media item at Index.
type MediaRemoved struct{ Index int }

// RulesProjected replaces the rules with a store snapshot.
type RulesProjected struct{ Rules []model.Rule }

// RuleDraftSet updates the rule being typed.
type RuleDraftSet struct{ Draft RuleDraft }

// RuleAdded appends a rule and clears the draft.
type RuleAdded struct{ Rule model.Rule }

// RuleToggled flips a rule's active flag.
type RuleToggled struct{ ID string }

// RuleRemoved deletes a rule from the list.
type RuleRemoved struct{ ID string }

// RuleRestored puts a rule back after its write failed. With Prev nil the
// rule is removed; otherwise Prev replaces it, or is inserted at Index when it
// is no longer listed.
type RuleRestored struct {
	ID    string
	Prev  *model.Rule
	Index int
}

// PendingWritesChanged adjusts the unconfirmed write counter.
type PendingWritesChanged struct{ Delta int }

// ContactsLoaded replaces the contact list.
type ContactsLoaded struct{ Contacts []model.Contact }

// ContactSelected picks the contact whose thread is shown.
type ContactSelected struct{ Number string }

// MessagesLoaded replaces the thread for From.
type MessagesLoaded struct {
	From     string
	Messages []model.Message
}

// OrdersLoaded replaces the order list. Deleted carries tombstones read from
// the store along with it.
type OrdersLoaded struct {
	Orders  []model.Order
	Deleted []string
}

// OrderDeleted tombstones an order.
type OrderDeleted struct{ ID string }

// HelpRequestsLoaded replaces the help request list.
type HelpRequestsLoaded struct{ Requests []model.HelpRequest }

// ShowCompletedSet switches the orders view between active and delivered.
type ShowCompletedSet struct{ Show bool }

func (Scoped) isAction()               {}
func (IdentityChanged) isAction()      {}
func (StatusReceived) isAction()       {}
func (PairingStarted) isAction()       {}
func (PairingCodeReceived) isAction()  {}
func (PairingSucceeded) isAction()     {}
func (PairingEnded) isAction()         {}
func (Disconnected) isAction()         {}
func (BusySet) isAction()              {}
func (OrderBusySet) isAction()         {}
func (ResolveBusySet) isAction()       {}
func (BotToggled) isAction()           {}
func (ConfigMerged) isAction()         {}
func (ConfigEdited) isAction()         {}
func (MediaAppended) isAction()        {}
func (MediaRemoved) isAction()         {}
func (RulesProjected) isAction()       {}
func (RuleDraftSet) isAction()         {}
func (RuleAdded) isAction()            {}
func (RuleToggled) isAction()          {}
func (RuleRemoved) isAction()          {}
func (RuleRestored) isAction()         {}
func (PendingWritesChanged) isAction() {}
func (ContactsLoaded) isAction()       {}
func (ContactSelected) isAction()      {}
func (MessagesLoaded) isAction()       {}
func (OrdersLoaded) isAction()         {}
func (OrderDeleted) isAction()         {}
func (HelpRequestsLoaded) isAction()   {}
func (ShowCompletedSet) isAction()     {}
