package keep

import "strings"

// UnknownCategory is where files with no matching extension land.
const UnknownCategory = "unknown_format_files"

// category pairs a folder name with the extensions routed to it.
// The table is ordered: the first category whose set contains the
// extension wins.
type category struct {
	name       string
	extensions map[string]struct{}
}

var categories = []category{
	{"photos", extSet("jpg", "jpeg", "png", "gif", "bmp")},
	{"videos", extSet("mp4", "avi", "mkv", "mov")},
	{"documents", extSet("pdf", "doc", "docx", "txt", "xls", "xlsx")},
	{"books", extSet("epub", "fb2")},
	{"music", extSet("mp3", "aac", "m4a")},
	{"archives", extSet("zip", "rar", "tar", "gz", "bz2")},
}

func extSet(exts ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		s[e] = struct{}{}
	}
	return s
}

// Classify maps a filename to its destination folder. The extension is
// the substring after the final '.', lowercased; a name with no dot
// (or nothing after it) routes to UnknownCategory. Classify is total:
// it never fails and the same input always yields the same category.
func Classify(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return UnknownCategory
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, c := range categories {
		if _, ok := c.extensions[ext]; ok {
			return c.name
		}
	}
	return UnknownCategory
}

// Categories returns every folder name in classification order,
// including UnknownCategory. Used to pre-create the taxonomy under a
// day's upload folder.
func Categories() []string {
	out := make([]string, 0, len(categories)+1)
	for _, c := range categories {
		out = append(out, c.name)
	}
	return append(out, UnknownCategory)
}

// ExtensionAllowed reports whether a filename's extension is in the
// classifier table. Extension-less names are not allowed for upload.
func ExtensionAllowed(filename string) bool {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, c := range categories {
		if _, ok := c.extensions[ext]; ok {
			return true
		}
	}
	return false
}
