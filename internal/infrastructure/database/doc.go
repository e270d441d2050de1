// Package database provides SQLite connectivity for the runbook service.
//
// The SQLite database holds operator accounts and the audit log. The
// automation catalog itself is persisted separately (see package automation).
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or carry a DEFAULT,
// and each .up.sql should ship with a .down.sql.
package database
