package db

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nickyhof/crossdb/core"
	"github.com/nickyhof/crossdb/ps"
)

type TxState int

const (
	Idle TxState = iota
	Active
)

func (s TxState) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// TxOutcome is how the last transaction ended.
type TxOutcome int

const (
	NoOutcome TxOutcome = iota
	Committed
	RolledBack
)

func (o TxOutcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return "none"
	}
}

// TxController owns the transaction boundary of one engine. While Idle
// every statement commits on its own; while Active statements stage
// their changes in the transaction overlay until Commit or Rollback.
//
// Every path into the base store goes through commitChanges: changes are
// persisted first, then swapped into the store in one step.
type TxController struct {
	store       *ps.Store
	persistence *ps.Persistence
	identity    core.Identity
	logger      *zap.Logger

	state      TxState
	outcome    TxOutcome
	overlay    *ps.Overlay
	statements int
	latest     ps.Transaction
}

func newTxController(store *ps.Store, persistence *ps.Persistence, identity core.Identity, logger *zap.Logger) *TxController {
	return &TxController{
		store:       store,
		persistence: persistence,
		identity:    identity,
		logger:      logger,
		latest:      persistence.LatestTransaction(),
	}
}

func (tc *TxController) State() TxState {
	return tc.state
}

func (tc *TxController) Outcome() TxOutcome {
	return tc.outcome
}

func (tc *TxController) InTransaction() bool {
	return tc.state == Active
}

// Latest returns the last commit written by the persistence layer.
func (tc *TxController) Latest() ps.Transaction {
	return tc.latest
}

// View is what statements read: the transaction overlay while Active,
// the base store otherwise.
func (tc *TxController) View() ps.View {
	if tc.state == Active {
		return tc.overlay
	}
	return tc.store
}

func (tc *TxController) Begin() error {
	if tc.state == Active {
		return core.Errorf(core.TransactionAlreadyActive, "a transaction is already active")
	}

	tc.state = Active
	tc.overlay = ps.NewOverlay(tc.store)
	tc.statements = 0
	tc.logger.Debug("Transaction started")
	return nil
}

// Commit makes the staged changes visible and durable. If persisting
// fails the transaction stays Active and nothing is applied.
func (tc *TxController) Commit() (ps.Transaction, error) {
	if tc.state != Active {
		return ps.Transaction{}, core.Errorf(core.NoActiveTransaction, "no active transaction to commit")
	}

	changes := tc.overlay.Changes()
	txn, err := tc.commitChanges(changes, commitMessage(tc.statements))
	if err != nil {
		tc.logger.Warn("Transaction commit failed, transaction left open", zap.Error(err))
		return ps.Transaction{}, err
	}

	tc.logger.Info("Transaction committed",
		zap.Int("statements", tc.statements),
		zap.Int("tables", len(changes)),
		zap.String("commit", txn.Id))

	tc.finish(Committed)
	return txn, nil
}

func (tc *TxController) Rollback() error {
	if tc.state != Active {
		return core.Errorf(core.NoActiveTransaction, "no active transaction to roll back")
	}

	tc.overlay.Discard()
	tc.logger.Info("Transaction rolled back", zap.Int("statements", tc.statements))
	tc.finish(RolledBack)
	return nil
}

func (tc *TxController) finish(outcome TxOutcome) {
	tc.state = Idle
	tc.outcome = outcome
	tc.overlay = nil
	tc.statements = 0
}

// Run executes one statement atomically. The statement writes to its own
// overlay, which is merged into the transaction on success while Active,
// or committed on its own while Idle. On error nothing is kept.
func (tc *TxController) Run(message string, statement func(*ps.Overlay) error) (ps.Transaction, error) {
	parent := tc.View()
	overlay := ps.NewOverlay(parent)

	if err := statement(overlay); err != nil {
		return ps.Transaction{}, err
	}

	if tc.state == Active {
		tc.overlay.Apply(overlay.Changes())
		tc.statements++
		return ps.Transaction{}, nil
	}

	return tc.commitChanges(overlay.Changes(), message)
}

func (tc *TxController) commitChanges(changes []ps.Change, message string) (ps.Transaction, error) {
	if len(changes) == 0 {
		return ps.Transaction{}, nil
	}

	var txn ps.Transaction
	if tc.persistence != nil {
		var err error
		txn, err = tc.persistence.SaveTables(changes, tc.identity, message)
		if err != nil {
			return ps.Transaction{}, core.Wrap(core.StorageError, err, "failed to persist commit")
		}
		tc.latest = txn
	}

	tc.store.Apply(changes)
	return txn, nil
}

func commitMessage(statements int) string {
	return fmt.Sprintf("Commit transaction (%d statement(s))", statements)
}
