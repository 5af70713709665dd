// Package models defines the data shapes exchanged with the remote node.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FileEntry is one filesystem object on the remote node, as returned by the
// snapshot endpoint. Name is the full path and the unique key.
//
// Fields the client does not interpret are kept in Meta and written back
// unchanged. The known fields are normalized on the way out: "dir" is always
// written and a zero "size" is omitted, so a restored entry is equal to the
// decoded one but its JSON need not match the node's bytes.
type FileEntry struct {
	Name string `json:"name"`
	Dir  bool   `json:"dir"`
	Size int64  `json:"size,omitempty"`

	// Meta holds every other field of the snapshot descriptor.
	Meta map[string]json.RawMessage `json:"-"`
}

var knownFileFields = map[string]bool{"name": true, "dir": true, "size": true}

// UnmarshalJSON decodes the known fields and keeps the rest in Meta.
func (f *FileEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var entry FileEntry
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &entry.Name); err != nil {
			return fmt.Errorf("file name: %w", err)
		}
	}
	if v, ok := raw["dir"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &entry.Dir); err != nil {
			return fmt.Errorf("file dir marker: %w", err)
		}
	}
	if v, ok := raw["size"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &entry.Size); err != nil {
			return fmt.Errorf("file size: %w", err)
		}
	}

	for k, v := range raw {
		if knownFileFields[k] {
			continue
		}
		if entry.Meta == nil {
			entry.Meta = make(map[string]json.RawMessage)
		}
		entry.Meta[k] = v
	}

	*f = entry
	return nil
}

// MarshalJSON writes the known fields followed by Meta.
func (f FileEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(f.Meta)+3)
	for k, v := range f.Meta {
		out[k] = v
	}

	name, _ := json.Marshal(f.Name)
	out["name"] = name
	out["dir"] = json.RawMessage(fmt.Sprintf("%t", f.Dir))
	if f.Size != 0 {
		out["size"] = json.RawMessage(fmt.Sprintf("%d", f.Size))
	}
	return json.Marshal(out)
}

// ParentDir returns the directory containing the entry ("/docs" for
// "/docs/a.txt"). Entries at the top level return "/" when the name is
// absolute and "" otherwise.
func ParentDir(name string) string {
	name = strings.TrimSuffix(name, "/")
	idx := strings.LastIndex(name, "/")
	switch {
	case idx < 0:
		return ""
	case idx == 0:
		return "/"
	default:
		return name[:idx]
	}
}

// JoinPath joins a directory and a leaf name the way the node expects
// ("<root>/<name>"), without collapsing or cleaning the root.
func JoinPath(root, name string) string {
	return root + "/" + name
}

// FindFile returns the entry with the given name.
func FindFile(files []FileEntry, name string) (FileEntry, bool) {
	for _, f := range files {
		if f.Name == name {
			return f, true
		}
	}
	return FileEntry{}, false
}

// SortedNames returns the entry names in lexical order with directories first.
func SortedNames(files []FileEntry) []string {
	sorted := make([]FileEntry, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Dir != sorted[j].Dir {
			return sorted[i].Dir
		}
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	names := make([]string, len(sorted))
	for i, f := range sorted {
		names[i] = f.Name
	}
	return names
}
