// Package store provides persistent storage for portim using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with per-consumer
// interfaces:
//
//   - InterfaceStore: registered endpoints and their credential material
//   - ClientStore: end-user identities keyed by (project, external id)
//   - SessionStore: routing state binding clients to interface pairs
//   - MessageStore: delivery attempts with status transitions
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Clients carry a UNIQUE(project_id, external_id) constraint so concurrent
// first messages from the same external identity converge on one row.
// Message status is CHECK-constrained to pending/delivered/error.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateClient: external id already registered in the project
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(":memory:") or a
// tempdir path for integration tests with real SQLite.
package store
