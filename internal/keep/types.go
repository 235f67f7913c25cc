package keep

import "time"

// Attributes is the open attribute bag stored per logical path.
// Well-known keys written by the pipeline: "type", "size",
// "uploaded_at", "compressed", "encrypted", "artifact", "versions".
// Arbitrary user-supplied keys are merged in by UpdateMetadata.
type Attributes map[string]any

// Clone returns a shallow copy of the bag. A nil receiver clones to an
// empty, non-nil bag.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Version is one immutable snapshot of a logical file. Version numbers
// start at 1 and increase by 1 per logical path, never reused.
type Version struct {
	Version   int       `json:"version"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is one entry in a file's append-only comment list.
type Comment struct {
	Text      string    `json:"text"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// FileEntry describes one file in a storage root listing.
type FileEntry struct {
	Name     string
	Path     string // logical path, relative to the storage root
	Category string
	Size     int64
	ModTime  time.Time
	Metadata Attributes
}

// Document is the shape handed to the search collaborator on every
// successful ingest.
type Document struct {
	Path      string     `json:"path"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
	Metadata  Attributes `json:"metadata"`
}
