// Command bindings builds crossdb as a C shared library:
//
//	go build -buildmode=c-shared -o libcrossdb.so ./bindings
//
// Handles are 64-bit integers; 0 is the null handle. When a call returns
// the null handle or a non-zero status, xdb_errcode and xdb_errmsg on the
// connection handle (or on 0 for failed opens and stale handles) report
// what went wrong.
package main

/*
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/nickyhof/crossdb"
	"github.com/nickyhof/crossdb/db"
	"github.com/nickyhof/crossdb/internal/logging"
)

var (
	handles *registry

	versionOnce sync.Once
	versionStr  *C.char
)

func init() {
	handles = newRegistry(newLogger(), func(p unsafe.Pointer) { C.free(p) })
}

// newLogger logs to stderr when CROSSDB_LOG_LEVEL is set.
func newLogger() *zap.Logger {
	level, ok := os.LookupEnv("CROSSDB_LOG_LEVEL")
	if !ok {
		return zap.NewNop()
	}

	logger, err := logging.New(level, os.Getenv("CROSSDB_LOG_FORMAT"))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

//export xdb_open
func xdb_open(identifier *C.char) C.uint64_t {
	return C.uint64_t(handles.open(C.GoString(identifier)))
}

//export xdb_exec
func xdb_exec(conn C.uint64_t, query *C.char) C.uint64_t {
	return C.uint64_t(handles.exec(db.Handle(conn), C.GoString(query)))
}

//export xdb_free_result
func xdb_free_result(res C.uint64_t) {
	handles.freeResult(db.Handle(res))
}

//export xdb_fetch_row
func xdb_fetch_row(res C.uint64_t) C.uint64_t {
	return C.uint64_t(handles.fetchRow(db.Handle(res)))
}

//export xdb_column_int
func xdb_column_int(res, row C.uint64_t, column C.int) C.int64_t {
	return C.int64_t(handles.columnInt(db.Handle(res), db.Handle(row), int(column)))
}

// xdb_column_str returns NULL for SQL NULL. The string stays valid until
// the result is freed.
//
//export xdb_column_str
func xdb_column_str(res, row C.uint64_t, column C.int) *C.char {
	p := handles.columnText(db.Handle(res), db.Handle(row), int(column), func(s string) unsafe.Pointer {
		return unsafe.Pointer(C.CString(s))
	})
	return (*C.char)(p)
}

//export xdb_begin
func xdb_begin(conn C.uint64_t) C.int {
	return C.int(handles.begin(db.Handle(conn)))
}

//export xdb_commit
func xdb_commit(conn C.uint64_t) C.int {
	return C.int(handles.commit(db.Handle(conn)))
}

//export xdb_rollback
func xdb_rollback(conn C.uint64_t) C.int {
	return C.int(handles.rollback(db.Handle(conn)))
}

//export xdb_close
func xdb_close(conn C.uint64_t) {
	handles.close(db.Handle(conn))
}

//export xdb_version
func xdb_version() *C.char {
	versionOnce.Do(func() {
		versionStr = C.CString(crossdb.Version())
	})
	return versionStr
}

//export xdb_errcode
func xdb_errcode(handle C.uint64_t) C.int {
	return C.int(handles.lastError(db.Handle(handle)).kind)
}

// xdb_errmsg copies the last error message into buf, truncated and NUL
// terminated, and returns the full message length.
//
//export xdb_errmsg
func xdb_errmsg(handle C.uint64_t, buf *C.char, size C.size_t) C.size_t {
	msg := handles.lastError(db.Handle(handle)).msg
	if buf != nil && size > 0 {
		n := copyLen(len(msg), uint64(size))
		if n > 0 {
			cmsg := C.CString(msg[:n])
			C.memcpy(unsafe.Pointer(buf), unsafe.Pointer(cmsg), C.size_t(n))
			C.free(unsafe.Pointer(cmsg))
		}
		*(*C.char)(unsafe.Add(unsafe.Pointer(buf), n)) = 0
	}
	return C.size_t(len(msg))
}

func main() {}
