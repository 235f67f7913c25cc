// Package keep contains the core file lifecycle engine: classification,
// the ingest transform pipeline, versioning, comments, metadata, and
// share tokens. Implementation packages (store, compress, encryption,
// search, sync) plug in through the interfaces declared here.
package keep
