// Package database provides SQLite-based storage for mirror runs.
//
// This package implements the MirrorDB, which stores:
//   - One record per mirror run with its summary statistics
//   - The pages mirrored in each run
//   - The resources downloaded in each run with their outcome
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
