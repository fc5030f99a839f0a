// Package filetype classifies project files by extension.
package filetype

import "strings"

// FileType is the classification stored on file nodes. The zero value means
// unclassified.
type FileType string

const (
	Unclassified FileType = ""
	HTML         FileType = "html"
	CSS          FileType = "css"
	Markdown     FileType = "md"
	JavaScript   FileType = "js"
	TypeScript   FileType = "ts"
	JSON         FileType = "json"
)

var byExtension = map[string]FileType{
	"html": HTML,
	"css":  CSS,
	"md":   Markdown,
	"js":   JavaScript,
	"ts":   TypeScript,
	"json": JSON,
}

// Extension returns the lower-cased text after the last dot of the final
// path segment, or "" when there is none.
func Extension(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Classify maps a file name (or path) to its FileType.
func Classify(name string) FileType {
	return byExtension[Extension(name)]
}

// DisplayKind is how a file's content should be presented. Every FileType
// has a DisplayKind of the same spelling; unclassified files are PlainText.
type DisplayKind string

// PlainText is the generic display kind for unknown extensions.
const PlainText DisplayKind = "plaintext"

// DisplayKindOf returns the display kind for a file name or path. It never
// fails: anything unknown is shown as plain text.
func DisplayKindOf(name string) DisplayKind {
	ft := Classify(name)
	if ft == Unclassified {
		return PlainText
	}
	return DisplayKind(ft)
}

// EditorLanguage returns the code-editor language id for the kind.
func (k DisplayKind) EditorLanguage() string {
	switch FileType(k) {
	case Markdown:
		return "markdown"
	case JavaScript:
		return "javascript"
	case TypeScript:
		return "typescript"
	case HTML, CSS, JSON:
		return string(k)
	default:
		return string(PlainText)
	}
}
