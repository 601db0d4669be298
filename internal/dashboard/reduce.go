package dashboard

import (
	"maps"
	"slices"

	"github.com/matheus3301/wppbot/internal/model"
	"github.com/matheus3301/wppbot/internal/status"
)

// Reduce returns the state after applying a. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Scoped:
		if a.UserID != s.UserID {
			return s
		}
		return Reduce(s, a.Action)

	case IdentityChanged:
		return NewState(a.UserID)

	case StatusReceived:
		s.Status = a.Status
		s.Config.BotEnabled = a.Status.BotEnabled
		s.Phase = status.FromStatus(s.Phase, a.Status.Connected)
		if a.Status.Connected {
			s.PairingCode = ""
		}

	case PairingStarted:
		if next, err := status.Transition(s.Phase, status.Pairing); err == nil {
			s.Phase = next
		}
		s.PairingCode = ""

	case PairingCodeReceived:
		if s.Phase == status.Pairing {
			s.PairingCode = a.Code
		}

	case PairingSucceeded:
		s.Status.Connected = true
		s.Phase = status.Connected
		s.PairingCode = ""

	case PairingEnded:
		if s.Phase == status.Pairing {
			s.Phase = status.FromStatus(status.Disconnected, s.Status.Connected)
		}
		s.PairingCode = ""

	case Disconnected:
		s.Status.Connected = false
		s.Phase = status.Disconnected
		s.PairingCode = ""

	case BusySet:
		s.Busy = setFlag(s.Busy, a.Task, a.On)

	case OrderBusySet:
		s.OrderBusy = setFlag(s.OrderBusy, a.OrderID, a.On)

	case ResolveBusySet:
		s.ResolveBusy = setFlag(s.ResolveBusy, a.RequestID, a.On)

	case BotToggled:
		s.Status.BotEnabled = a.Enabled
		s.Config.BotEnabled = a.Enabled

	case ConfigMerged:
		s = mergeConfig(s, a.Patch)

	case ConfigEdited:
		enabled := s.Config.BotEnabled
		s.Config = a.Config
		s.Config.BotEnabled = enabled
		s.Config.FirstContact.Media = slices.Clone(a.Config.FirstContact.Media)

	case MediaAppended:
		media := slices.Clone(s.Config.FirstContact.Media)
		s.Config.FirstContact.Media = append(media, a.Ref)

	case MediaRemoved:
		media := s.Config.FirstContact.Media
		if a.Index >= 0 && a.Index < len(media) {
			s.Config.FirstContact.Media = slices.Delete(slices.Clone(media), a.Index, a.Index+1)
		}

	case RulesProjected:
		s.Rules = slices.Clone(a.Rules)

	case RuleDraftSet:
		s.RuleDraft = a.Draft

	case RuleAdded:
		rules := slices.Clone(s.Rules)
		s.Rules = append(rules, a.Rule)
		s.RuleDraft = RuleDraft{}

	case RuleToggled:
		if i := s.ruleIndex(a.ID); i >= 0 {
			s.Rules = slices.Clone(s.Rules)
			s.Rules[i].Active = !s.Rules[i].Active
		}

	case RuleRemoved:
		s.Rules = slices.DeleteFunc(slices.Clone(s.Rules), func(r model.Rule) bool { return r.ID == a.ID })

	case RuleRestored:
		s.Rules = restoreRule(s.Rules, a)

	case PendingWritesChanged:
		s.PendingWrites = max(0, s.PendingWrites+a.Delta)

	case ContactsLoaded:
		s.Contacts = slices.Clone(a.Contacts)

	case ContactSelected:
		if s.SelectedContact != a.Number {
			s.Messages = nil
		}
		s.SelectedContact = a.Number

	case MessagesLoaded:
		if a.From == s.SelectedContact {
			s.Messages = slices.Clone(a.Messages)
		}

	case OrdersLoaded:
		for _, id := range a.Deleted {
			s.Deleted = setFlag(s.Deleted, id, true)
		}
		s.Orders = slices.DeleteFunc(slices.Clone(a.Orders), func(o model.Order) bool { return s.Deleted[o.ID] })

	case OrderDeleted:
		s.Deleted = setFlag(s.Deleted, a.ID, true)
		s.Orders = slices.DeleteFunc(slices.Clone(s.Orders), func(o model.Order) bool { return o.ID == a.ID })

	case HelpRequestsLoaded:
		s.HelpRequests = slices.Clone(a.Requests)

	case ShowCompletedSet:
		s.ShowCompleted = a.Show
	}
	return s
}

func setFlag[K comparable](m map[K]bool, k K, on bool) map[K]bool {
	out := maps.Clone(m)
	if out == nil {
		out = map[K]bool{}
	}
	if on {
		out[k] = true
	} else {
		delete(out, k)
	}
	return out
}

// mergeConfig applies only the fields present in p. Empty prompt and message
// count as absent.
func mergeConfig(s State, p ConfigPatch) State {
	if p.BotEnabled != nil {
		s.Config.BotEnabled = *p.BotEnabled
		s.Status.BotEnabled = *p.BotEnabled
	}
	if p.BotPrompt != nil && *p.BotPrompt != "" {
		s.Config.BotPrompt = *p.BotPrompt
	}
	if p.FirstContactEnabled != nil {
		s.Config.FirstContact.Enabled = *p.FirstContactEnabled
	}
	if p.FirstContactMessage != nil && *p.FirstContactMessage != "" {
		s.Config.FirstContact.Message = *p.FirstContactMessage
	}
	if p.HasMedia {
		s.Config.FirstContact.Media = slices.Clone(p.FirstContactMedia)
	}
	s.ConfigLoaded = true
	return s
}

func restoreRule(rules []model.Rule, a RuleRestored) []model.Rule {
	rules = slices.Clone(rules)
	i := slices.IndexFunc(rules, func(r model.Rule) bool { return r.ID == a.ID })
	if a.Prev == nil {
		if i >= 0 {
			rules = slices.Delete(rules, i, i+1)
		}
		return rules
	}
	if i >= 0 {
		rules[i] = *a.Prev
		return rules
	}
	at := min(max(a.Index, 0), len(rules))
	return slices.Insert(rules, at, *a.Prev)
}
