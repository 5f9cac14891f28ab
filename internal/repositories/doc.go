// Package repositories implements the position store over SQLite and PostgreSQL.
//
// Both implementations satisfy [models.PositionStore] and [models.PositionLister]:
//   - [PositionRepository] : database/sql over mattn/go-sqlite3 with the embedded migrations from the shared package
//   - [PostgresPositionStore] : uptrace/bun over pgdriver, creating its table on [PostgresPositionStore.Init]
//
// Writes are last-write-wins upserts keyed by (user_id, playlist_id), so two transitions racing for the same
// playlist can only leave the slightly older track behind until the next transition overwrites it.
//
// The SQLite repository assigns a per-table sequence number through [NextSequence] for stable, human-readable
// ordering independent of UUIDs and timestamps.
package repositories
