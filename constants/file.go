package constants

import "strings"

// ItemKind selects the extraction route for a work item.
type ItemKind string

// Stable values (store these exact strings in DB).
const (
	PDF   ItemKind = "PDF"
	IMAGE ItemKind = "IMAGE"
	TEXT  ItemKind = "TEXT"
)

// FileTypes holds the allowed kinds for the kind field in records.
var FileTypes = []string{string(PDF), string(IMAGE), string(TEXT)}

// AllowedExtensions holds the default allowed file extensions for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"txt":  {},
	"md":   {},
}

var extKinds = map[string]ItemKind{
	"pdf":  PDF,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"txt":  TEXT,
	"md":   TEXT,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// KindForExt maps a file extension to its ItemKind. Returns false for
// extensions outside the allowed set.
func KindForExt(ext string) (ItemKind, bool) {
	k, ok := extKinds[NormalizeExt(ext)]
	return k, ok
}
