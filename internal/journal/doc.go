// Package journal holds the rules of the theater journal: which shows are
// upcoming and which were watched, how the list views are ordered, and the
// statistics, badges and calendar computed from a snapshot of records.
//
// Every function is pure. Bucket membership is always derived from a
// record's date compared with a caller-supplied today; the stored Status
// field is a cache written at save time and never consulted by the views.
// Records whose date cannot be parsed are skipped and reported as
// MalformedDate warnings instead of failing the whole computation.
package journal
