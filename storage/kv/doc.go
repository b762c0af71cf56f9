// Package kv defines the transactional substrate that range maps are
// persisted through, along with helpers shared by its drivers.
//
// A kv driver is exposed as a Plugin, a factory for Store instances. A Store
// is a single ordered keyspace. All reads and writes happen inside a
// Transaction:
//
//  - Reads observe writes made previously by the same transaction.
//  - Transactions are serializable. A driver that uses optimistic concurrency
//    control reports a lost race from Commit with ErrConflict. The whole
//    read-modify-write sequence must then be retried from a fresh transaction.
//    Update and View are retry loops for callers that want one.
//  - Rollback discards every uncommitted Put, Delete and DeleteRange.
//
// Drivers do not interpret keys or values. Key layout (prefixes, tuple
// encoding) is the business of the layers above, which share a keyspace by
// wrapping transactions with Namespace.
package kv
