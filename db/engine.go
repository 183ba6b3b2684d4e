package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/op"
	"github.com/nickyhof/crossdb/ps"
	"github.com/nickyhof/crossdb/sql"
)

// Engine executes SQL against one table store. It owns the store, the
// transaction controller and every result set it hands out. An Engine is
// not safe for concurrent use.
type Engine struct {
	store       *ps.Store
	persistence *ps.Persistence
	tx          *TxController
	results     Arena[*resultData]
	logger      *zap.Logger
	closed      bool
}

// NewEngine creates an engine. With a non-nil persistence the latest
// snapshot is loaded and every commit is written back to it.
func NewEngine(persistence *ps.Persistence, identity core.Identity, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := ps.NewStore()
	if persistence != nil {
		tables, err := persistence.LoadTables()
		if err != nil {
			return nil, core.Wrap(core.StorageError, err, "failed to load snapshot")
		}

		changes := make([]ps.Change, len(tables))
		for i, t := range tables {
			changes[i] = ps.Change{Name: t.Name(), Table: t}
		}
		store.Apply(changes)

		logger.Info("Loaded snapshot",
			zap.Int("tables", len(tables)),
			zap.String("commit", persistence.LatestTransaction().Id))
	}

	return &Engine{
		store:       store,
		persistence: persistence,
		tx:          newTxController(store, persistence, identity, logger),
		logger:      logger,
	}, nil
}

func (engine *Engine) checkOpen() error {
	if engine.closed {
		return core.Errorf(core.AlreadyClosed, "connection is closed")
	}
	return nil
}

// Execute runs one SQL statement and returns its result set, which the
// caller must release.
func (engine *Engine) Execute(query string) (*ResultSet, error) {
	if err := engine.checkOpen(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	statement, err := sql.Parse(query)
	if err != nil {
		engine.logger.Debug("Statement rejected", zap.String("sql", query), zap.Error(err))
		return nil, err
	}

	var data *resultData
	switch statement.Type() {
	case sql.SelectStatementType:
		data, err = engine.executeSelectStatement(statement.(sql.SelectStatement))
	case sql.InsertStatementType:
		data, err = engine.executeInsertStatement(statement.(sql.InsertStatement), query)
	case sql.UpdateStatementType:
		data, err = engine.executeUpdateStatement(statement.(sql.UpdateStatement), query)
	case sql.DeleteStatementType:
		data, err = engine.executeDeleteStatement(statement.(sql.DeleteStatement), query)
	case sql.CreateTableStatementType:
		data, err = engine.executeCreateTableStatement(statement.(sql.CreateTableStatement), query)
	case sql.DropTableStatementType:
		data, err = engine.executeDropTableStatement(statement.(sql.DropTableStatement), query)
	case sql.BeginStatementType:
		err = engine.tx.Begin()
		data = &resultData{}
	case sql.CommitStatementType:
		var txn ps.Transaction
		txn, err = engine.tx.Commit()
		data = &resultData{transaction: txn}
	case sql.RollbackStatementType:
		err = engine.tx.Rollback()
		data = &resultData{}
	default:
		err = core.Errorf(core.SyntaxError, "unsupported statement type: %v", statement.Type())
	}

	if err != nil {
		engine.logger.Debug("Statement failed",
			zap.Stringer("statement", statement.Type()),
			zap.Error(err))
		return nil, err
	}

	data.statement = statement.Type()
	data.elapsed = time.Since(startTime)

	engine.logger.Debug("Statement executed",
		zap.Stringer("statement", data.statement),
		zap.Int("rows", len(data.rows)),
		zap.Int("affected", data.rowsAffected),
		zap.Duration("elapsed", data.elapsed))

	return engine.newResult(data), nil
}

func (engine *Engine) newResult(data *resultData) *ResultSet {
	return &ResultSet{engine: engine, handle: engine.results.Insert(data)}
}

func (engine *Engine) executeSelectStatement(statement sql.SelectStatement) (*resultData, error) {
	tableOp, err := op.GetTable(statement.Table, engine.tx.View())
	if err != nil {
		return nil, err
	}

	where, err := compileWhere(tableOp, statement.Where)
	if err != nil {
		return nil, err
	}

	if statement.CountAll {
		count, err := tableOp.Count(where)
		if err != nil {
			return nil, err
		}
		return &resultData{
			columns: []core.Column{{Name: "COUNT(*)", Type: core.IntType}},
			rows:    [][]core.Value{{core.Int(int64(count))}},
		}, nil
	}

	orderBy := make([]op.Order, len(statement.OrderBy))
	for i, o := range statement.OrderBy {
		orderBy[i] = op.Order{Column: o.Column, Descending: o.Descending}
	}

	columns, rows, err := tableOp.Select(op.Query{
		Columns: statement.Columns,
		Where:   where,
		OrderBy: orderBy,
		Limit:   statement.Limit,
		Offset:  statement.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &resultData{columns: columns, rows: rows}, nil
}

func (engine *Engine) executeInsertStatement(statement sql.InsertStatement, query string) (*resultData, error) {
	var inserted int
	txn, err := engine.tx.Run(query, func(overlay *ps.Overlay) error {
		tableOp, err := op.OpenTable(statement.Table, overlay)
		if err != nil {
			return err
		}
		inserted, err = tableOp.Insert(statement.Columns, statement.Rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &resultData{rowsAffected: inserted, transaction: txn}, nil
}

func (engine *Engine) executeUpdateStatement(statement sql.UpdateStatement, query string) (*resultData, error) {
	var updated int
	txn, err := engine.tx.Run(query, func(overlay *ps.Overlay) error {
		tableOp, err := op.OpenTable(statement.Table, overlay)
		if err != nil {
			return err
		}

		where, err := compileWhere(tableOp, statement.Where)
		if err != nil {
			return err
		}

		assignments := make([]op.Assignment, len(statement.Updates))
		for i, set := range statement.Updates {
			assignments[i] = op.Assignment{Column: set.Column, Value: set.Value}
		}

		updated, err = tableOp.Update(assignments, where)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &resultData{rowsAffected: updated, transaction: txn}, nil
}

func (engine *Engine) executeDeleteStatement(statement sql.DeleteStatement, query string) (*resultData, error) {
	var deleted int
	txn, err := engine.tx.Run(query, func(overlay *ps.Overlay) error {
		tableOp, err := op.OpenTable(statement.Table, overlay)
		if err != nil {
			return err
		}

		where, err := compileWhere(tableOp, statement.Where)
		if err != nil {
			return err
		}

		deleted, err = tableOp.Delete(where)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &resultData{rowsAffected: deleted, transaction: txn}, nil
}

func (engine *Engine) executeCreateTableStatement(statement sql.CreateTableStatement, query string) (*resultData, error) {
	txn, err := engine.tx.Run(query, func(overlay *ps.Overlay) error {
		if _, exists := overlay.Table(statement.Table); exists && statement.IfNotExists {
			return nil
		}
		_, err := op.CreateTable(core.Table{Name: statement.Table, Columns: statement.Columns}, overlay)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &resultData{transaction: txn}, nil
}

func (engine *Engine) executeDropTableStatement(statement sql.DropTableStatement, query string) (*resultData, error) {
	txn, err := engine.tx.Run(query, func(overlay *ps.Overlay) error {
		if _, exists := overlay.Table(statement.Table); !exists && statement.IfExists {
			return nil
		}
		return op.DropTable(statement.Table, overlay)
	})
	if err != nil {
		return nil, err
	}

	return &resultData{transaction: txn}, nil
}

// compileWhere resolves the columns of a WHERE clause against the table
// and returns a filter that evaluates the conditions left to right.
func compileWhere(tableOp *op.TableOp, where sql.WhereClause) (op.Filter, error) {
	if len(where.Conditions) == 0 {
		return nil, nil
	}

	positions := make([]int, len(where.Conditions))
	for i, cond := range where.Conditions {
		pos, err := tableOp.ColumnIndex(cond.Column)
		if err != nil {
			return nil, err
		}

		col := tableOp.Table.Columns[pos]
		if !cond.Value.IsNull() {
			if err := cond.Value.Check(core.Column{Name: col.Name, Type: col.Type}); err != nil {
				return nil, err
			}
		}
		positions[i] = pos
	}

	return func(cells []core.Value) (bool, error) {
		return matchesWhereClause(cells, positions, where)
	}, nil
}

func matchesWhereClause(cells []core.Value, positions []int, where sql.WhereClause) (bool, error) {
	result, err := evaluateCondition(cells[positions[0]], where.Conditions[0])
	if err != nil {
		return false, err
	}

	for i := 1; i < len(where.Conditions); i++ {
		condResult, err := evaluateCondition(cells[positions[i]], where.Conditions[i])
		if err != nil {
			return false, err
		}

		if i-1 < len(where.LogicalOps) && where.LogicalOps[i-1] == sql.LogicalOr {
			result = result || condResult
		} else {
			result = result && condResult
		}
	}

	return result, nil
}

// evaluateCondition compares one cell with a literal. Comparisons
// involving NULL are false; only IS [NOT] NULL matches NULL.
func evaluateCondition(value core.Value, cond sql.WhereCondition) (bool, error) {
	switch cond.Operator {
	case sql.IsNullOperator:
		return value.IsNull(), nil
	case sql.IsNotNullOperator:
		return !value.IsNull(), nil
	}

	if value.IsNull() || cond.Value.IsNull() {
		return false, nil
	}

	c, err := core.Compare(value, cond.Value)
	if err != nil {
		return false, err
	}

	switch cond.Operator {
	case sql.EqualsOperator:
		return c == 0, nil
	case sql.NotEqualsOperator:
		return c != 0, nil
	case sql.LessThanOperator:
		return c < 0, nil
	case sql.GreaterThanOperator:
		return c > 0, nil
	case sql.LessThanOrEqualOperator:
		return c <= 0, nil
	case sql.GreaterThanOrEqualOperator:
		return c >= 0, nil
	default:
		return false, fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}

func (engine *Engine) Begin() error {
	if err := engine.checkOpen(); err != nil {
		return err
	}
	return engine.tx.Begin()
}

func (engine *Engine) Commit() (ps.Transaction, error) {
	if err := engine.checkOpen(); err != nil {
		return ps.Transaction{}, err
	}
	return engine.tx.Commit()
}

func (engine *Engine) Rollback() error {
	if err := engine.checkOpen(); err != nil {
		return err
	}
	return engine.tx.Rollback()
}

func (engine *Engine) InTransaction() bool {
	return !engine.closed && engine.tx.InTransaction()
}

// SetIdentity changes the author recorded on later commits.
func (engine *Engine) SetIdentity(identity core.Identity) {
	engine.tx.identity = identity
}

// TxOutcome reports how the last transaction ended.
func (engine *Engine) TxOutcome() TxOutcome {
	return engine.tx.Outcome()
}

// LatestTransaction returns the last commit of the persistence layer.
func (engine *Engine) LatestTransaction() (ps.Transaction, error) {
	if err := engine.checkOpen(); err != nil {
		return ps.Transaction{}, err
	}
	return engine.tx.Latest(), nil
}

// History lists the commits made since asof, latest first.
func (engine *Engine) History(asof time.Time) ([]ps.Transaction, error) {
	if err := engine.checkOpen(); err != nil {
		return nil, err
	}
	if engine.persistence == nil {
		return nil, nil
	}

	txns, err := engine.persistence.TransactionsSince(asof)
	return txns, core.Wrap(core.StorageError, err, "failed to read history")
}

// TableNames lists the tables visible to the next statement.
func (engine *Engine) TableNames() ([]string, error) {
	if err := engine.checkOpen(); err != nil {
		return nil, err
	}
	return engine.tx.View().TableNames(), nil
}

// OpenResults returns the number of result sets not yet released.
func (engine *Engine) OpenResults() int {
	return engine.results.Len()
}

// Close rolls back an open transaction, invalidates every outstanding
// result set and drops the in-memory tables.
func (engine *Engine) Close() error {
	if err := engine.checkOpen(); err != nil {
		return err
	}

	if engine.tx.InTransaction() {
		engine.logger.Warn("Closing with an open transaction, rolling back")
		_ = engine.tx.Rollback()
	}

	if n := engine.results.Len(); n > 0 {
		engine.logger.Debug("Invalidating unreleased result sets", zap.Int("count", n))
	}
	engine.results.Clear()
	engine.store.Reset()
	engine.closed = true
	return nil
}
