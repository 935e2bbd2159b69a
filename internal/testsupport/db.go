// Package testsupport provides a no-op database/sql driver so service
// tests can exercise transaction orchestration against fake
// repositories without a running Postgres.
package testsupport

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

func init() {
	sql.Register("testsupport", fakeDriver{})
}

// OpenDB returns a *sql.DB whose transactions begin and commit without
// touching storage. Statements are not supported; repositories under
// test must be fakes.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("testsupport", "")
	if err != nil {
		t.Fatalf("open fake db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{}, nil }

type fakeConn struct{}

func (*fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("testsupport: statements not supported")
}

func (*fakeConn) Close() error { return nil }

func (*fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }
