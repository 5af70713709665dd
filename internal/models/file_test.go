package models

import (
	"encoding/json"
	"testing"
)

func TestFileEntryPreservesUnknownFields(t *testing.T) {
	input := `{"name":"/docs/a.txt","dir":false,"size":42,"kind":"text","created":1700000000}`

	var f FileEntry
	if err := json.Unmarshal([]byte(input), &f); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if f.Name != "/docs/a.txt" {
		t.Errorf("Name = %q, want %q", f.Name, "/docs/a.txt")
	}
	if f.Dir {
		t.Error("Dir should be false")
	}
	if f.Size != 42 {
		t.Errorf("Size = %d, want 42", f.Size)
	}
	if string(f.Meta["kind"]) != `"text"` {
		t.Errorf("Meta[kind] = %s, want \"text\"", f.Meta["kind"])
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back map[string]interface{}
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal of output failed: %v", err)
	}
	if back["kind"] != "text" {
		t.Errorf("kind lost on re-encode: %v", back)
	}
	if back["created"] != float64(1700000000) {
		t.Errorf("created lost on re-encode: %v", back)
	}
}

func TestFileEntryNormalizesKnownFields(t *testing.T) {
	input := `{"name":"/empty.txt","size":0,"owner":"n1"}`

	var f FileEntry
	if err := json.Unmarshal([]byte(input), &f); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal of output failed: %v", err)
	}
	if string(fields["dir"]) != "false" {
		t.Errorf("dir = %s, want false", fields["dir"])
	}
	if _, ok := fields["size"]; ok {
		t.Errorf("zero size should be omitted, got %s", data)
	}
	if string(fields["owner"]) != `"n1"` {
		t.Errorf("owner = %s, want \"n1\"", fields["owner"])
	}

	var back FileEntry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal of output failed: %v", err)
	}
	if back.Name != f.Name || back.Dir != f.Dir || back.Size != f.Size {
		t.Errorf("restored %+v, want %+v", back, f)
	}
}

func TestFileEntryMinimalDescriptor(t *testing.T) {
	var f FileEntry
	if err := json.Unmarshal([]byte(`{"name":"/a.txt"}`), &f); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if f.Name != "/a.txt" || f.Dir || f.Size != 0 || f.Meta != nil {
		t.Errorf("unexpected entry: %+v", f)
	}
}

func TestFileEntryRejectsWrongTypes(t *testing.T) {
	var f FileEntry
	if err := json.Unmarshal([]byte(`{"name":"/a","dir":"yes"}`), &f); err == nil {
		t.Error("expected error for string dir marker")
	}
}

func TestParentDir(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"/docs/a.txt", "/docs"},
		{"/docs/sub/b.txt", "/docs/sub"},
		{"/a.txt", "/"},
		{"a.txt", ""},
		{"node.os:drive/file", "node.os:drive"},
		{"/docs/sub/", "/docs"},
	}

	for _, tt := range tests {
		if got := ParentDir(tt.name); got != tt.want {
			t.Errorf("ParentDir(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestJoinPath(t *testing.T) {
	if got := JoinPath("/docs", "notes"); got != "/docs/notes" {
		t.Errorf("JoinPath = %q, want /docs/notes", got)
	}
}

func TestSortedNames(t *testing.T) {
	files := []FileEntry{
		{Name: "/b.txt"},
		{Name: "/zdir", Dir: true},
		{Name: "/A.txt"},
		{Name: "/adir", Dir: true},
	}
	got := SortedNames(files)
	want := []string{"/adir", "/zdir", "/A.txt", "/b.txt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedNames = %v, want %v", got, want)
		}
	}
}
