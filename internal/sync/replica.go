package sync

// Replica mirrors a local file tree to a secondary location. Paths are
// relative to the watched root, using the local separator; backends
// normalize as needed.
type Replica interface {
	// Put copies the local file at src to the replica under rel,
	// overwriting any previous copy.
	Put(rel, src string) error

	// Remove deletes rel from the replica. A path that was never
	// mirrored is not an error.
	Remove(rel string) error
}
