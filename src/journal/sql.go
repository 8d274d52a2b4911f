// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/casjay-forks/beans/src/validation"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS pastes (
		id          VARCHAR(64)  PRIMARY KEY,
		conn_id     VARCHAR(64)  NOT NULL,
		remote      VARCHAR(128) NOT NULL,
		size        BIGINT       NOT NULL,
		digest      VARCHAR(128) NOT NULL,
		syntax      VARCHAR(64)  NOT NULL,
		mode        VARCHAR(8)   NOT NULL,
		create_time BIGINT       NOT NULL
	)`

// SQL records entries in a "pastes" table.
type SQL struct {
	pool   *sql.DB
	driver string
	insert string
}

// sqlDriverName maps journal drivers to database/sql driver names.
func sqlDriverName(driver string) string {
	if driver == validation.DriverPostgres {
		return "pgx"
	}
	return driver
}

// placeholders returns "?, ?, ..." or "$1, $2, ..." for postgres.
func placeholders(driver string, n int) string {
	p := make([]string, n)
	for i := range p {
		if driver == validation.DriverPostgres {
			p[i] = "$" + strconv.Itoa(i+1)
		} else {
			p[i] = "?"
		}
	}
	return strings.Join(p, ", ")
}

func OpenSQL(ctx context.Context, driver, dataSource string) (*SQL, error) {
	pool, err := sql.Open(sqlDriverName(driver), dataSource)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}

	if driver == validation.DriverSQLite {
		// One writer avoids "database is locked" under concurrent inserts.
		pool.SetMaxOpenConns(1)
	} else {
		pool.SetMaxOpenConns(8)
		pool.SetMaxIdleConns(2)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if _, err := pool.ExecContext(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: create table: %w", err)
	}

	return &SQL{
		pool:   pool,
		driver: driver,
		insert: `INSERT INTO pastes (id, conn_id, remote, size, digest, syntax, mode, create_time)
			VALUES (` + placeholders(driver, 8) + `)`,
	}, nil
}

func (j *SQL) Record(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	_, err := j.pool.ExecContext(ctx, j.insert,
		e.ID, e.ConnID, e.Remote, e.Size, e.Digest, e.Syntax, e.Mode, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("journal: insert %s: %w", e.ID, err)
	}
	return nil
}

// Count returns the number of recorded pastes.
func (j *SQL) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM pastes`).Scan(&n)
	return n, err
}

func (j *SQL) Close() error {
	return j.pool.Close()
}
