// Package database provides the SQLite connection used by focuserd for its
// command history.
//
// The connection runs in WAL mode with a busy timeout and a single open
// connection, which matches SQLite's single-writer model. The database file
// is created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive-only SQL files named
// YYYYMMDD_HHMMSS_description.up.sql, applied in version order, each in its
// own transaction and recorded in schema_migrations.
package database
