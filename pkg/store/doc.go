/*
Package store persists markov models in a SQLite database, as an alternative
to flat snapshot files when many models share one place. It supports saving,
loading, listing and deleting named models, plus merging new observations
into an already-stored model by summing frequencies.

The SQLite driver is chosen at build time: the pure-Go modernc.org/sqlite
driver by default, or mattn/go-sqlite3 under the `cgo_sqlite` build tag.
*/
package store
