// Package stores persists sync run history in SQLite.
// The database runs in WAL mode and its schema is managed by embedded
// golang-migrate migrations.
package stores
