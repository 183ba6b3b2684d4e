package main

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/nickyhof/crossdb"
	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/db"
)

// lastError is the error slot read back by xdb_errcode and xdb_errmsg.
type lastError struct {
	kind core.ErrorKind
	msg  string
}

func (l *lastError) set(err error) {
	l.kind = core.KindOf(err)
	l.msg = ""
	if err != nil {
		l.msg = err.Error()
	}
}

type connEntry struct {
	conn    *crossdb.Connection
	results map[db.Handle]struct{}
	err     lastError
}

type resultEntry struct {
	conn db.Handle
	rs   *db.ResultSet
	rows []db.Handle

	// C strings handed out by column_str, freed with the result
	owned []unsafe.Pointer
}

type rowEntry struct {
	result db.Handle
	row    *db.RowBuffer
}

// registry maps the integer handles crossing the C boundary to Go values.
// Every call takes the mutex, so connections are used by one caller at a
// time even when the host application is multithreaded.
type registry struct {
	mu      sync.Mutex
	logger  *zap.Logger
	conns   db.Arena[*connEntry]
	results db.Arena[*resultEntry]
	rows    db.Arena[*rowEntry]

	// errors not attributable to a live connection: failed opens and
	// stale handles
	orphan lastError

	// releases memory returned by the alloc passed to columnText
	free func(unsafe.Pointer)
}

func newRegistry(logger *zap.Logger, free func(unsafe.Pointer)) *registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registry{logger: logger, free: free}
}

func (r *registry) fail(conn *connEntry, err error) {
	if conn != nil {
		conn.err.set(err)
		return
	}
	r.orphan.set(err)
}

func (r *registry) connection(h db.Handle) (*connEntry, error) {
	entry, ok := r.conns.Get(h)
	if !ok {
		return nil, core.Errorf(core.AlreadyClosed, "connection handle %#x is not open", uint64(h))
	}
	return entry, nil
}

// result resolves a result handle and its owning connection. On failure
// the error is already recorded.
func (r *registry) result(h db.Handle) (*resultEntry, *connEntry, bool) {
	res, ok := r.results.Get(h)
	if !ok {
		r.orphan.set(core.Errorf(core.UseAfterRelease, "result handle %#x has been released", uint64(h)))
		return nil, nil, false
	}
	conn, _ := r.conns.Get(res.conn)
	return res, conn, true
}

func (r *registry) open(identifier string) db.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := crossdb.Open(identifier, crossdb.WithLogger(r.logger))
	if err != nil {
		r.orphan.set(err)
		return 0
	}

	r.orphan.set(nil)
	return r.conns.Insert(&connEntry{conn: conn, results: make(map[db.Handle]struct{})})
}

func (r *registry) exec(h db.Handle, query string) db.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.connection(h)
	if err != nil {
		r.orphan.set(err)
		return 0
	}

	rs, err := conn.conn.Execute(query)
	if err != nil {
		conn.err.set(err)
		return 0
	}

	conn.err.set(nil)
	res := r.results.Insert(&resultEntry{conn: h, rs: rs})
	conn.results[res] = struct{}{}
	return res
}

// release drops a result with its rows and C strings. The caller holds
// the mutex.
func (r *registry) release(h db.Handle) {
	res, ok := r.results.Remove(h)
	if !ok {
		return
	}

	for _, row := range res.rows {
		r.rows.Remove(row)
	}
	for _, p := range res.owned {
		r.free(p)
	}
	if conn, ok := r.conns.Get(res.conn); ok {
		delete(conn.results, h)
	}

	if err := res.rs.Release(); err != nil {
		r.logger.Debug("Result already released", zap.Error(err))
	}
}

func (r *registry) freeResult(h db.Handle) {
	if h == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.release(h)
}

// fetchRow returns the next row handle, or 0 at the end of the data or on
// error. The two are told apart by the error slot.
func (r *registry) fetchRow(h db.Handle) db.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, conn, ok := r.result(h)
	if !ok {
		return 0
	}

	row, err := res.rs.Next()
	if err != nil {
		r.fail(conn, err)
		return 0
	}
	r.fail(conn, nil)
	if row == nil {
		return 0
	}

	rh := r.rows.Insert(&rowEntry{result: h, row: row})
	res.rows = append(res.rows, rh)
	return rh
}

func (r *registry) row(res, row db.Handle) (*rowEntry, *connEntry, bool) {
	_, conn, ok := r.result(res)
	if !ok {
		return nil, nil, false
	}

	entry, ok := r.rows.Get(row)
	if !ok || entry.result != res {
		r.fail(conn, core.Errorf(core.UseAfterRelease, "row handle %#x does not belong to result %#x", uint64(row), uint64(res)))
		return nil, nil, false
	}
	return entry, conn, true
}

func (r *registry) columnInt(res, row db.Handle, column int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, conn, ok := r.row(res, row)
	if !ok {
		return 0
	}

	n, err := entry.row.Int(column)
	r.fail(conn, err)
	return n
}

// columnText returns the text of a cell as memory from alloc, owned by the
// result set. It returns nil for SQL NULL and on error.
func (r *registry) columnText(res, row db.Handle, column int, alloc func(string) unsafe.Pointer) unsafe.Pointer {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, conn, ok := r.row(res, row)
	if !ok {
		return nil
	}

	s, valid, err := entry.row.Text(column)
	r.fail(conn, err)
	if err != nil || !valid {
		return nil
	}

	p := alloc(s)
	result, _ := r.results.Get(res)
	result.owned = append(result.owned, p)
	return p
}

func (r *registry) transaction(h db.Handle, fn func(*crossdb.Connection) error) core.ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.connection(h)
	if err != nil {
		r.orphan.set(err)
		return core.KindOf(err)
	}

	err = fn(conn.conn)
	conn.err.set(err)
	return core.KindOf(err)
}

func (r *registry) begin(h db.Handle) core.ErrorKind {
	return r.transaction(h, (*crossdb.Connection).Begin)
}

func (r *registry) commit(h db.Handle) core.ErrorKind {
	return r.transaction(h, func(conn *crossdb.Connection) error {
		_, err := conn.Commit()
		return err
	})
}

func (r *registry) rollback(h db.Handle) core.ErrorKind {
	return r.transaction(h, (*crossdb.Connection).Rollback)
}

func (r *registry) close(h db.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns.Remove(h)
	if !ok {
		r.orphan.set(core.Errorf(core.AlreadyClosed, "connection handle %#x is not open", uint64(h)))
		return
	}

	for res := range conn.results {
		r.release(res)
	}
	if err := conn.conn.Close(); err != nil {
		r.orphan.set(err)
		return
	}
	r.orphan.set(nil)
}

// lastError returns the error slot of a connection, or the orphan slot
// when h is 0 or not open.
func (r *registry) lastError(h db.Handle) lastError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns.Get(h); ok {
		return conn.err
	}
	return r.orphan
}

// copyLen returns how many bytes of a msgLen-byte message fit in a C
// buffer of size bytes next to the terminating NUL. size must be non-zero.
func copyLen(msgLen int, size uint64) int {
	if size > uint64(msgLen) {
		return msgLen
	}
	return int(size) - 1
}
