// Package crud implements generic create, update and delete primitives
// over the whitelisted tables of package schema.
//
// Primitives run inside an atomic unit (*txn.Tx). Each one validates its
// whole input and checks that referenced ids exist before the first
// statement; then it mutates row by row and records one history entry per
// row. If a statement fails part-way, the primitive compensates by undoing
// its own records before returning, so the unit never holds a half-applied
// batch.
package crud
