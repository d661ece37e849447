// Package sqlite persists radar runs, per-frame summaries and target lists.
//
// The schema is embedded and applied with golang-migrate on Open, so a
// fresh file and an existing database are handled the same way.
package sqlite
