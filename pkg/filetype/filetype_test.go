package filetype

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want FileType
	}{
		{"index.html", HTML},
		{"styles.css", CSS},
		{"README.md", Markdown},
		{"app.js", JavaScript},
		{"main.ts", TypeScript},
		{"package.json", JSON},
		{"src/deep/page.HTML", HTML},
		{"archive.tar.gz", Unclassified},
		{"Makefile", Unclassified},
		{"trailing.", Unclassified},
		{".gitignore", Unclassified},
		{"component.tsx", Unclassified},
		{"", Unclassified},
	}
	for _, tt := range tests {
		if got := Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDisplayKindOf(t *testing.T) {
	tests := []struct {
		name string
		want DisplayKind
	}{
		{"src/index.html", "html"},
		{"src/unknownfile.xyz", PlainText},
		{"notes", PlainText},
		{"data.json", "json"},
	}
	for _, tt := range tests {
		if got := DisplayKindOf(tt.name); got != tt.want {
			t.Errorf("DisplayKindOf(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestEditorLanguage(t *testing.T) {
	tests := []struct {
		kind DisplayKind
		want string
	}{
		{"html", "html"},
		{"css", "css"},
		{"md", "markdown"},
		{"js", "javascript"},
		{"ts", "typescript"},
		{"json", "json"},
		{PlainText, "plaintext"},
		{"bogus", "plaintext"},
	}
	for _, tt := range tests {
		if got := tt.kind.EditorLanguage(); got != tt.want {
			t.Errorf("%q.EditorLanguage() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
