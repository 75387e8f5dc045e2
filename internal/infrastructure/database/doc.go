// Package database provides SQLite connectivity for HomyTech Core.
//
// It manages the connection (WAL mode, busy timeout, single writer) and
// applies schema migrations supplied as an fs.FS, normally the embedded
// files of the top-level migrations package.
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
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
package database
