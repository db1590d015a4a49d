/*
Package ports defines the driven ports (interfaces) used by the batch executor and the host.

These interfaces decouple the transactional execution model from the concrete
document model and storage backends.

# Key Interfaces

  - TransactionManager: opens the single transaction that wraps a batch.
  - Transaction / Savepoint: the atomicity boundary and per-item isolation.
  - JournalStore: records committed batches (memory or Redis).
*/
package ports
