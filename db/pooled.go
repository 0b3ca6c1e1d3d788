package db

import (
	"context"
	"database/sql"
	"time"
)

// StoreConn is a dedicated backing-store connection lent out by the
// connection pool. It pins one sql.Conn off the shared handle so a scan
// worker gets session-level isolation for the duration of its work.
type StoreConn struct {
	conn *sql.Conn
}

// Ping probes the connection for liveness.
func (c *StoreConn) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.conn.PingContext(ctx)
}

// Close returns the underlying connection to the driver.
func (c *StoreConn) Close() error {
	return c.conn.Close()
}

// Conn exposes the pinned sql.Conn for query execution.
func (c *StoreConn) Conn() *sql.Conn {
	return c.conn
}

// NewStoreConn pins a dedicated connection off the shared handle.
func (d *DatabaseConnection) NewStoreConn(ctx context.Context) (*StoreConn, error) {
	conn, err := d.sqlDb.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &StoreConn{conn: conn}, nil
}
