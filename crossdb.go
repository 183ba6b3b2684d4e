package crossdb

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/db"
	"github.com/nickyhof/crossdb/ps"
)

const version = "0.4.0"

// MemoryIdentifier opens a connection without persistence.
const MemoryIdentifier = ":memory:"

// Version returns the library version string.
func Version() string {
	return version
}

type options struct {
	logger   *zap.Logger
	identity core.Identity
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger for the connection. The default discards
// everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithIdentity sets the author recorded on persisted commits.
func WithIdentity(identity core.Identity) Option {
	return func(o *options) {
		o.identity = identity
	}
}

// Connection is an open database. It is not safe for concurrent use.
type Connection struct {
	engine     *db.Engine
	identifier string
	logger     *zap.Logger
}

// Open opens a database. ":memory:" or an empty identifier gives a private
// in-memory database; anything else is a directory holding a git
// repository of committed snapshots, created if needed.
func Open(identifier string, opts ...Option) (*Connection, error) {
	o := options{
		logger:   zap.NewNop(),
		identity: core.Identity{Name: "crossdb", Email: "crossdb@localhost"},
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.With(zap.String("database", identifier))

	var persistence *ps.Persistence
	if identifier != "" && identifier != MemoryIdentifier {
		var err error
		persistence, err = ps.NewFilePersistence(identifier)
		if err != nil {
			return nil, core.Wrap(core.StorageError, err, "failed to open "+identifier)
		}
	}

	engine, err := db.NewEngine(persistence, o.identity, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Connection opened", zap.Bool("persistent", persistence != nil))
	return &Connection{engine: engine, identifier: identifier, logger: logger}, nil
}

// Identifier returns the identifier the connection was opened with.
func (conn *Connection) Identifier() string {
	return conn.identifier
}

// Execute runs one SQL statement. The caller must release the result set.
func (conn *Connection) Execute(query string) (*db.ResultSet, error) {
	return conn.engine.Execute(query)
}

// Begin starts a transaction.
func (conn *Connection) Begin() error {
	return conn.engine.Begin()
}

// Commit ends the transaction, making its changes visible and durable.
func (conn *Connection) Commit() (ps.Transaction, error) {
	return conn.engine.Commit()
}

// Rollback ends the transaction, discarding its changes.
func (conn *Connection) Rollback() error {
	return conn.engine.Rollback()
}

// SetIdentity changes the author recorded on later persisted commits,
// including the commit of a transaction already open.
func (conn *Connection) SetIdentity(identity core.Identity) {
	conn.engine.SetIdentity(identity)
}

func (conn *Connection) InTransaction() bool {
	return conn.engine.InTransaction()
}

// LatestTransaction returns the last persisted commit. It is zero for
// in-memory connections.
func (conn *Connection) LatestTransaction() (ps.Transaction, error) {
	return conn.engine.LatestTransaction()
}

// History lists persisted commits newer than asof, latest first.
func (conn *Connection) History(asof time.Time) ([]ps.Transaction, error) {
	return conn.engine.History(asof)
}

func (conn *Connection) TableNames() ([]string, error) {
	return conn.engine.TableNames()
}

// ExportTable writes a table as CSV to a local path, file://, or s3:// URL.
func (conn *Connection) ExportTable(ctx context.Context, table, path string, cfg *db.S3Config) (int, error) {
	return conn.engine.ExportTable(ctx, table, path, cfg)
}

// ImportTable inserts the rows of a CSV file from a local path, file://,
// http(s):// or s3:// URL into an existing table.
func (conn *Connection) ImportTable(ctx context.Context, table, path string, cfg *db.S3Config) (int, error) {
	return conn.engine.ImportTable(ctx, table, path, cfg)
}

// Close rolls back any open transaction and invalidates every result set
// of the connection. Closing twice fails with AlreadyClosed.
func (conn *Connection) Close() error {
	if err := conn.engine.Close(); err != nil {
		return err
	}
	conn.logger.Debug("Connection closed")
	return nil
}
