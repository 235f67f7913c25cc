package keep

import "io"

// MetadataStore is the persisted mapping from logical path to its
// attribute bag. Reads never fail: a missing record or an unreadable
// table degrades to an empty bag, so callers must treat an empty bag
// as "unknown", not as confirmed absence of metadata.
//
// Concurrent mutations of the same path are serialized by the
// implementation; Upsert merges shallowly with last-write-wins per
// key, AppendVersion is an atomic read-modify-write of the record.
type MetadataStore interface {
	Get(path string) Attributes
	Upsert(path string, attrs Attributes) error
	AppendVersion(path string, v Version) error

	// Paths returns every logical path with a record, sorted. Listings
	// use this to map artifacts back to the paths that key them.
	Paths() ([]string, error)

	Close() error
}

// CommentStore is the persisted mapping from logical path to its
// append-only comment list. Same read-degradation contract as
// MetadataStore.
type CommentStore interface {
	List(path string) []Comment
	Append(path string, c Comment) error
	Close() error
}

// Compressor archives a stored file into a single-entry compressed
// container.
type Compressor interface {
	// Compress writes a compressed container for the file at path,
	// removes the original, and returns the container path. On error
	// the original file is left in place.
	Compress(path string) (string, error)

	// Decompress extracts the single entry of a container produced by
	// Compress and writes its bytes to w.
	Decompress(r io.Reader, w io.Writer) error
}

// Encryptor applies the process-wide at-rest encryption.
type Encryptor interface {
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}

// Indexer is the external search collaborator. Index is fire and
// forget from the pipeline's point of view: failures are logged and
// never block an upload.
type Indexer interface {
	// Index upserts a document under the given id (the logical path).
	Index(id string, doc Document) error

	// Search runs a multi-field match against name, description, tags,
	// and category. Best effort: an unreachable index yields an error,
	// not a panic.
	Search(query string) ([]Document, error)

	Close() error
}
