// Package ledger holds the types shared by the account store, the
// transaction engine and the transaction log: accounts, transactions and
// their per-kind details, the fee schedule, reference generation and the
// error taxonomy.
package ledger
