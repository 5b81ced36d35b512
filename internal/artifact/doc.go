// Package artifact persists the files produced by the parser backend.
//
// Artifacts are addressed by slash-separated keys of the form
// "<group>/<id>/<name>". Every processed record also gets a manifest at
// "<group>/<id>/manifest.json"; its presence marks the record as done, which
// is what makes re-runs resumable.
//
// Three backends implement Store:
//
//   - FileStore writes under a local directory with atomic temp+rename.
//   - S3Store writes to any S3-compatible service through minio-go.
//   - MemoryStore keeps everything in a map and is used by tests.
//
// NewCached puts an LRU of positive Exists answers in front of any Store.
package artifact
