package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Snapshot is the state of a subtree at one point in time.
type Snapshot struct {
	Path   string
	Exists bool
	Value  json.RawMessage
}

// Decode unmarshals the snapshot value into v. Decoding a missing snapshot is an error.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return fmt.Errorf("document %q does not exist", s.Path)
	}
	return json.Unmarshal(s.Value, v)
}

// CleanPath validates a document path and strips surrounding slashes.
func CleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", errors.New("empty document path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid document path %q", p)
		}
	}
	return p, nil
}

// Set replaces the subtree at path with value. A nil value deletes the subtree.
// Objects are stored one leaf per scalar or array; empty objects and null
// members vanish.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}

	leaves := map[string]string{}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		var tree any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if err := flatten(path, tree, leaves); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prefix := path + "/"
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE path = ? OR substr(path, 1, ?) = ?`,
		path, utf8.RuneCountInString(prefix), prefix); err != nil {
		return fmt.Errorf("clear %s: %w", path, err)
	}
	// A scalar stored at an ancestor is replaced by the new subtree.
	for _, anc := range ancestors(path) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, anc); err != nil {
			return fmt.Errorf("clear ancestor %s: %w", anc, err)
		}
	}

	now := time.Now().UnixMilli()
	for p, v := range leaves {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (path, value, updated_at) VALUES (?, ?, ?)`,
			p, v, now); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO changes (path, changed_at) VALUES (?, ?)`, path, now); err != nil {
		return fmt.Errorf("journal %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}

	s.signal()
	return nil
}

// Get assembles the subtree at path.
func (s *Store) Get(ctx context.Context, path string) (Snapshot, error) {
	path, err := CleanPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	prefix := path + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value FROM documents WHERE path = ? OR substr(path, 1, ?) = ?`,
		path, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	defer func() { _ = rows.Close() }()

	snap := Snapshot{Path: path}
	root := map[string]any{}
	for rows.Next() {
		var p, v string
		if err := rows.Scan(&p, &v); err != nil {
			return Snapshot{}, err
		}
		if p == path {
			snap.Exists = true
			snap.Value = json.RawMessage(v)
			return snap, nil
		}
		insert(root, strings.Split(strings.TrimPrefix(p, prefix), "/"), json.RawMessage(v))
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	if len(root) == 0 {
		return snap, nil
	}
	raw, err := json.Marshal(root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("assemble %s: %w", path, err)
	}
	snap.Exists = true
	snap.Value = raw
	return snap, nil
}

// Keys lists the direct children of path in sorted order.
func (s *Store) Keys(ctx context.Context, path string) ([]string, error) {
	snap, err := s.Get(ctx, path)
	if err != nil || !snap.Exists {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(snap.Value, &m); err != nil {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func flatten(path string, v any, out map[string]string) error {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range t {
			if k == "" || strings.Contains(k, "/") {
				return fmt.Errorf("invalid key %q under %s", k, path)
			}
			if err := flatten(path+"/"+k, child, out); err != nil {
				return err
			}
		}
		return nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		out[path] = string(raw)
		return nil
	}
}

func insert(node map[string]any, segs []string, v json.RawMessage) {
	for i, seg := range segs {
		if i == len(segs)-1 {
			node[seg] = v
			return
		}
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
}

func ancestors(path string) []string {
	var out []string
	for i := strings.LastIndex(path, "/"); i > 0; i = strings.LastIndex(path[:i], "/") {
		out = append(out, path[:i])
	}
	return out
}

// overlaps reports whether a change at changed affects a subscriber of watched.
func overlaps(watched, changed string) bool {
	return watched == changed ||
		strings.HasPrefix(changed, watched+"/") ||
		strings.HasPrefix(watched, changed+"/")
}
