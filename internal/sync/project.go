package sync

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/matheus3301/wppbot/internal/dashboard"
	"github.com/matheus3301/wppbot/internal/docstore"
	"github.com/matheus3301/wppbot/internal/model"
)

// ConfigPatch extracts the fields present in a config snapshot. Fields of the
// wrong type are treated as absent. ok is false when the document is missing.
func ConfigPatch(snap docstore.Snapshot) (patch dashboard.ConfigPatch, ok bool) {
	var doc map[string]json.RawMessage
	if !snap.Exists || json.Unmarshal(snap.Value, &doc) != nil {
		return patch, false
	}

	patch.BotEnabled = decodeField[bool](doc, "botEnabled")
	patch.BotPrompt = decodeField[string](doc, "botPrompt")

	var fc map[string]json.RawMessage
	if raw, found := doc["firstContact"]; found && json.Unmarshal(raw, &fc) == nil {
		patch.FirstContactEnabled = decodeField[bool](fc, "enabled")
		patch.FirstContactMessage = decodeField[string](fc, "message")
		if media := decodeField[[]model.MediaRef](fc, "media"); media != nil {
			patch.FirstContactMedia = *media
			patch.HasMedia = true
		}
	}
	return patch, true
}

func decodeField[T any](doc map[string]json.RawMessage, key string) *T {
	raw, found := doc[key]
	if !found {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// Rules projects a rules snapshot keyed by id into a list. The key becomes the
// rule id. Rules are ordered by numeric id, then lexically. ok is false when
// the collection is missing.
func Rules(snap docstore.Snapshot) (rules []model.Rule, ok bool) {
	var doc map[string]json.RawMessage
	if !snap.Exists || json.Unmarshal(snap.Value, &doc) != nil {
		return nil, false
	}
	rules = make([]model.Rule, 0, len(doc))
	for id, raw := range doc {
		var r model.Rule
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		r.ID = id
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return ruleLess(rules[i].ID, rules[j].ID) })
	return rules, true
}

func ruleLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
