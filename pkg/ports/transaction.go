package ports

import "context"

// TransactionManager opens host-side transactions against a document.
type TransactionManager interface {
	// Begin opens a transaction. Only one may be open at a time per document.
	Begin(ctx context.Context, name string) (Transaction, error)
}

// Transaction wraps the execution of a whole batch.
// Items run inside savepoints: a failed item rolls back to its savepoint
// while earlier items are retained until Commit.
type Transaction interface {
	// Savepoint marks the current state so a single item can be undone.
	Savepoint(name string) (Savepoint, error)
	// Commit makes every retained change permanent.
	Commit(ctx context.Context) error
	// Rollback discards every change made since Begin.
	Rollback(ctx context.Context) error
}

// Savepoint is the isolation scope of one batch item.
type Savepoint interface {
	// Release keeps the changes made since the savepoint.
	Release() error
	// RollbackTo discards the changes made since the savepoint.
	RollbackTo() error
}
