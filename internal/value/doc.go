// Package value defines the column values a row can carry through the
// history engine and their canonical JSON encoding.
//
// Rows move between the CRUD executor, the ledger tables and the replay
// path as Object maps. A key that is absent from an Object means "not
// supplied"; a key mapped to Null means "write NULL". Keeping the two apart
// is what lets partial updates leave untouched columns alone.
//
// Payloads stored in the ledger use MarshalCanonical so the same row always
// serializes to the same bytes: keys sorted by UTF-16 code units, strings
// NFC normalized, no HTML escaping, floats always carrying a fraction or
// exponent so they decode back as Float.
//
// This package imports nothing internal.
package value
