package db

import (
	"fmt"
	"io"
	"time"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/ps"
	"github.com/nickyhof/crossdb/sql"
)

// resultData is what an arena slot owns for one result set.
type resultData struct {
	statement    sql.StatementType
	columns      []core.Column
	rows         [][]core.Value
	cursor       int
	rowsAffected int
	transaction  ps.Transaction
	elapsed      time.Duration
}

// ResultSet is the outcome of one executed statement. Queries carry rows
// that are fetched forward once with Next; other statements produce an
// empty result set. A ResultSet must be released exactly once.
type ResultSet struct {
	engine *Engine
	handle Handle
}

func (rs *ResultSet) data() (*resultData, error) {
	if rs == nil || rs.engine == nil {
		return nil, core.Errorf(core.UseAfterRelease, "result set is nil")
	}
	data, ok := rs.engine.results.Get(rs.handle)
	if !ok {
		return nil, core.Errorf(core.UseAfterRelease, "result set %#x was released", uint64(rs.handle))
	}
	return data, nil
}

// Handle returns the arena handle of the result set.
func (rs *ResultSet) Handle() Handle {
	return rs.handle
}

// Next returns the next row, or (nil, nil) once every row was fetched.
func (rs *ResultSet) Next() (*RowBuffer, error) {
	data, err := rs.data()
	if err != nil {
		return nil, err
	}

	if data.cursor >= len(data.rows) {
		return nil, nil
	}

	row := &RowBuffer{result: rs, cells: data.rows[data.cursor]}
	data.cursor++
	return row, nil
}

// Release frees the rows and invalidates the result set and every row
// fetched from it.
func (rs *ResultSet) Release() error {
	if _, err := rs.data(); err != nil {
		return err
	}
	rs.engine.results.Remove(rs.handle)
	return nil
}

// FreeResult releases rs. A nil result set is ignored.
func FreeResult(rs *ResultSet) error {
	if rs == nil {
		return nil
	}
	return rs.Release()
}

func (rs *ResultSet) StatementType() (sql.StatementType, error) {
	data, err := rs.data()
	if err != nil {
		return 0, err
	}
	return data.statement, nil
}

func (rs *ResultSet) Columns() ([]string, error) {
	data, err := rs.data()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(data.columns))
	for i, col := range data.columns {
		names[i] = col.Name
	}
	return names, nil
}

func (rs *ResultSet) ColumnTypes() ([]core.ColumnType, error) {
	data, err := rs.data()
	if err != nil {
		return nil, err
	}

	types := make([]core.ColumnType, len(data.columns))
	for i, col := range data.columns {
		types[i] = col.Type
	}
	return types, nil
}

func (rs *ResultSet) ColumnCount() (int, error) {
	data, err := rs.data()
	if err != nil {
		return 0, err
	}
	return len(data.columns), nil
}

// RowCount is the total number of rows, fetched or not.
func (rs *ResultSet) RowCount() (int, error) {
	data, err := rs.data()
	if err != nil {
		return 0, err
	}
	return len(data.rows), nil
}

// RowsAffected is the number of rows written by INSERT, UPDATE or DELETE.
func (rs *ResultSet) RowsAffected() (int, error) {
	data, err := rs.data()
	if err != nil {
		return 0, err
	}
	return data.rowsAffected, nil
}

// Transaction is the commit that made the statement durable. It is zero
// for reads, for statements inside an open transaction and for
// connections without persistence.
func (rs *ResultSet) Transaction() (ps.Transaction, error) {
	data, err := rs.data()
	if err != nil {
		return ps.Transaction{}, err
	}
	return data.transaction, nil
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 0.001:
		return "<1ms"
	case secs < 1:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case secs < 10:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 60:
		return fmt.Sprintf("%ds", int(secs))
	}

	mins := int(secs / 60)
	remainSecs := int(secs) % 60
	if remainSecs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, remainSecs)
}

// Display renders every row of a query as a table, followed by a stats
// line. Other statements print a one-line summary. The cursor is not
// moved.
func (rs *ResultSet) Display(w io.Writer) error {
	data, err := rs.data()
	if err != nil {
		return err
	}

	if data.statement.Class() != sql.Query {
		summary := "OK"
		if data.statement.Class() == sql.DML {
			summary = fmt.Sprintf("%d row(s) affected", data.rowsAffected)
		}
		_, err = fmt.Fprintf(w, "%s (%s)\n", summary, formatDuration(data.elapsed))
		return err
	}

	if len(data.rows) > 0 {
		headers := make([]string, len(data.columns))
		numeric := make([]bool, len(data.columns))
		for i, col := range data.columns {
			headers[i] = col.Name
			numeric[i] = col.Type == core.IntType
		}

		table := NewTable(w)
		table.Header(headers)
		table.RightAlign(numeric)
		for _, row := range data.rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = v.String()
			}
			table.Row(cells)
		}
		table.Render()
	}

	_, err = fmt.Fprintf(w, "%d rows (%s)\n", len(data.rows), formatDuration(data.elapsed))
	return err
}
