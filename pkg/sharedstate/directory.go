// Package sharedstate implements two optional shared-data utilities:
// Directory, which brackets snapshot windows with atomic version counters,
// and MergeStore, a per-flow accumulator that batches dataplane updates
// into a cache before merging them into a queryable map. Grounded on
// NetBricks' shared_state/directory.rs and NetBricks' state/dp_mergeable.rs.
//
// NetBricks backs Directory with an mmap'd named shared-memory segment so
// a separate control process can read it; that OS binding is a concern the
// dataplane framework itself has no stake in. flowcore's Directory keeps
// the same versioning discipline in-process and leaves exporting it over
// shared memory or a control socket to a caller-supplied reader.
package sharedstate

import "sync/atomic"

// MaxEntryNameLen mirrors the original's 255-byte entry name limit.
const MaxEntryNameLen = 255

// Directory is a named registry of entries plus a version counter external
// readers can poll to detect when a consistent snapshot is available.
type Directory struct {
	name             string
	entries          []string
	currentVersion   atomic.Uint64
	committedVersion atomic.Uint64
}

// NewDirectory constructs an empty, named Directory with its committed
// version initialized to 1, matching the original's new().
func NewDirectory(name string) *Directory {
	d := &Directory{name: name}
	d.currentVersion.Store(1)
	d.committedVersion.Store(1)
	return d
}

// Name returns the directory's name.
func (d *Directory) Name() string { return d.name }

// RegisterNewEntry appends name to the directory, failing if it exceeds
// MaxEntryNameLen. Returns the entry's index.
func (d *Directory) RegisterNewEntry(name string) (int, bool) {
	if len(name) > MaxEntryNameLen {
		return 0, false
	}
	d.entries = append(d.entries, name)
	return len(d.entries) - 1, true
}

// Entries returns the registered entry names in registration order.
func (d *Directory) Entries() []string {
	out := make([]string, len(d.entries))
	copy(out, d.entries)
	return out
}

// BeginSnapshot advances the current version, signaling that the data
// behind this directory's entries may be in flux until EndSnapshot commits.
func (d *Directory) BeginSnapshot() {
	d.currentVersion.Add(1)
}

// EndSnapshot publishes the current version as committed. Readers should
// only trust the directory's entries when CommittedVersion equals the
// version they observed before reading.
func (d *Directory) EndSnapshot() {
	d.committedVersion.Store(d.currentVersion.Load())
}

// CurrentVersion returns the in-progress version counter.
func (d *Directory) CurrentVersion() uint64 { return d.currentVersion.Load() }

// CommittedVersion returns the last version EndSnapshot published.
func (d *Directory) CommittedVersion() uint64 { return d.committedVersion.Load() }

// SnapshotStable reports whether the directory is not mid-snapshot, i.e.
// the committed version matches the current one.
func (d *Directory) SnapshotStable() bool {
	return d.CommittedVersion() == d.CurrentVersion()
}
