package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeListing(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantPaths   int
		wantEntries int
		wantIndex   bool
	}{
		{"empty object", `{}`, 0, 0, false},
		{"empty array", `[]`, 0, 0, false},
		{"blank", `  `, 0, 0, false},
		{"flat array", `["src/index.html","README.md"]`, 2, 0, false},
		{"nested array", `[{"name":"src","children":[{"name":"a.js"}]},{"name":"README.md"}]`, 0, 2, false},
		{"listing object", `{"projectId":"p1","format":"flat","paths":["a","b","c"]}`, 3, 0, false},
		{"directory index", `{"directories":{"src":{"directories":{},"files":["a.js"]}},"files":["README.md"]}`, 0, 0, true},
	}
	for _, tt := range tests {
		l, err := DecodeListing([]byte(tt.in))
		if err != nil {
			t.Fatalf("%s: DecodeListing error: %v", tt.name, err)
		}
		if len(l.Paths) != tt.wantPaths {
			t.Errorf("%s: got %d paths, want %d", tt.name, len(l.Paths), tt.wantPaths)
		}
		if len(l.Entries) != tt.wantEntries {
			t.Errorf("%s: got %d entries, want %d", tt.name, len(l.Entries), tt.wantEntries)
		}
		if (l.Index != nil) != tt.wantIndex {
			t.Errorf("%s: index present = %v, want %v", tt.name, l.Index != nil, tt.wantIndex)
		}
	}
}

func TestDecodeListing_Invalid(t *testing.T) {
	for _, in := range []string{`"just a string"`, `[1,2`, `{"paths": 5}`, `42`} {
		if _, err := DecodeListing([]byte(in)); err == nil {
			t.Errorf("DecodeListing(%s) expected error", in)
		}
	}
}

func TestListingEntry_ChildrenAttribute(t *testing.T) {
	var entries []ListingEntry
	if err := json.Unmarshal([]byte(`[{"name":"empty","children":[]},{"name":"file.txt"}]`), &entries); err != nil {
		t.Fatal(err)
	}
	if entries[0].Children == nil {
		t.Error("empty children attribute should decode to non-nil pointer")
	}
	if entries[1].Children != nil {
		t.Error("missing children attribute should decode to nil")
	}

	out, err := json.Marshal([]ListingEntry{FolderEntry("empty"), FileEntry("a.md", "md")})
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"name":"empty","children":[]},{"name":"a.md","type":"md"}]`
	if string(out) != want {
		t.Errorf("marshal = %s, want %s", out, want)
	}
}

func TestParseListingFormat(t *testing.T) {
	if f, err := ParseListingFormat(""); err != nil || f != FormatFlat {
		t.Errorf("empty format = %q, %v", f, err)
	}
	if f, err := ParseListingFormat("nested"); err != nil || f != FormatNested {
		t.Errorf("nested format = %q, %v", f, err)
	}
	if _, err := ParseListingFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
