// Package store provides persistent storage for coven-chat using SQLite.
//
// # Architecture
//
// The package is split into small interfaces so each consumer depends only on
// what it reads:
//
//   - MessageStore: save and query chat messages
//   - ChangeLog: insertion-ordered scan used by the change-feed poller
//   - UserStore: accounts and auth sessions
//
// SQLiteStore implements all of them; MockStore is the in-memory equivalent
// for tests and supports injected list failures and delays.
//
// # Data Models
//
//   - Message: {id, created_at, session_id, message: {content, type}} where
//     type is "human" or "ai". The JSON tags match the persisted row shape.
//   - User: email + bcrypt password hash
//   - AuthSession: revocable signed-in session
//
// # Ordering
//
// Timestamps are stored as fixed-width UTC strings so ORDER BY created_at is
// chronological. Rows with equal timestamps fall back to insertion order.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//	PRAGMA foreign_keys=ON;
//
// WAL lets the fake-agent process write while the chat client polls.
package store
