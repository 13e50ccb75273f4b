// Package history persists the layout's version chain in SQLite.
//
// Every committed edit produces one row in layout_versions, stored either
// as a full layout snapshot or as a diff against the previous version.
// Snapshots are taken at a fixed interval so any version can be rebuilt
// by loading the nearest snapshot at or below it and replaying the diffs
// that follow.
//
// The chain is gapless: version N can only be appended when version N-1
// is the newest row. The sync coordinator relies on this to make edits
// durable before they become visible to clients.
package history
