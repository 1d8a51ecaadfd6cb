// Package export copies store records into other formats for reporting.
package export

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kjk/travelstore/log"
	"github.com/kjk/travelstore/record"
	"github.com/kjk/travelstore/store"
)

var createPackagesTable = []string{
	`DROP TABLE IF EXISTS packages`,
	`CREATE TABLE packages (
	"offset" INTEGER PRIMARY KEY,
	package_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	hotel_name TEXT NOT NULL,
	start_date TEXT NOT NULL,
	duration INTEGER NOT NULL,
	price REAL NOT NULL
)`,
	`CREATE INDEX packages_package_id ON packages (package_id)`,
}

const insertPackage = `INSERT INTO packages ("offset", package_id, destination, hotel_name, start_date, duration, price) VALUES (?, ?, ?, ?, ?, ?, ?)`

// ToSQLite writes all records of s to table packages in sqlite database
// at dbPath, replacing the table if it exists. Rows are keyed by record
// offset in the data file. Returns number of rows written.
func ToSQLite(ctx context.Context, s *store.Store, dbPath string) (int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("export.ToSQLite: %w", err)
	}
	defer db.Close()

	for _, q := range createPackagesTable {
		if _, err = db.ExecContext(ctx, q); err != nil {
			return 0, fmt.Errorf("export.ToSQLite: creating table: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("export.ToSQLite: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertPackage)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("export.ToSQLite: %w", err)
	}
	defer stmt.Close()

	n := 0
	err = s.Scan(func(off int64, p *record.Package) error {
		_, err := stmt.ExecContext(ctx, off, p.PackageID, p.Destination, p.HotelName, p.StartDate.Format(record.DateFormat), p.Duration, p.Price)
		if err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("export.ToSQLite: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("export.ToSQLite: %w", err)
	}
	log.Verbosef("export.ToSQLite: wrote %d rows to '%s'\n", n, dbPath)
	return n, nil
}
