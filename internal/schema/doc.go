// Package schema holds the static column whitelist for every table the
// CRUD executor may touch, and builds parameterized statements from it.
//
// Statements are never assembled from caller-supplied identifiers: a row key
// is accepted only if it names a whitelisted column, column order in the
// generated SQL follows the table definition (not map iteration), and all
// values are bound as parameters.
package schema
