package roomstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Patch maps slash-separated field paths to new values. A nil value removes
// the field. Intermediate objects are created as needed.
//
//	Patch{"p1/score": 87.5, "rematch/p2": true}
type Patch map[string]any

// ApplyPatch returns doc with patch applied. Paths are applied in sorted
// order so a parent assignment precedes assignments beneath it.
func ApplyPatch(doc json.RawMessage, patch Patch) (json.RawMessage, error) {
	tree := map[string]any{}
	if len(doc) > 0 && string(doc) != "null" {
		if err := json.Unmarshal(doc, &tree); err != nil {
			return nil, fmt.Errorf("patch target is not an object: %w", err)
		}
	}

	paths := make([]string, 0, len(patch))
	for p := range patch {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		parts, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		value, err := normalize(patch[path])
		if err != nil {
			return nil, fmt.Errorf("patch value at %q: %w", path, err)
		}
		setPath(tree, parts, value)
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshal patched document: %w", err)
	}
	return out, nil
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty patch path %q", path)
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("malformed patch path %q", path)
		}
	}
	return parts, nil
}

// normalize round-trips a value through JSON so structs and maps land in the
// tree in the same generic shape a decoded document has.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func setPath(tree map[string]any, parts []string, value any) {
	node := tree
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]any)
		if !ok {
			if value == nil {
				return
			}
			child = map[string]any{}
			node[p] = child
		}
		node = child
	}
	last := parts[len(parts)-1]
	if value == nil {
		delete(node, last)
		return
	}
	node[last] = value
}
