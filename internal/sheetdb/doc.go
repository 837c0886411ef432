// Package sheetdb models a collection of items stored as rows of a remote
// spreadsheet and provides an immutable in-memory index over them.
//
// # Overview
//
// Each item occupies one row whose cells follow the fixed [Columns] schema.
// [Decode] and [Encode] convert between a [Row] and an [Item]. [Build] runs
// a single pass over all fetched rows and produces a [Snapshot] holding the
// decoded items plus an id index and a tag index.
//
// # Remote Storage
//
// The authoritative copy lives behind the [Store] interface: fetch all rows,
// append one row, overwrite rows by position, delete rows by position.
// Positions are 1-based remote row numbers, distinct from the 0-based
// position of an item inside a [Snapshot]. [MemoryStore] is an in-process
// implementation of the same contract.
//
// # Snapshots
//
// A Snapshot is never modified after [Build] returns. Callers replace it
// wholesale when fresher data is needed, so readers need no locking.
package sheetdb
