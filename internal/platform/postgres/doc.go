// Package postgres provides PostgreSQL implementations of the store
// interfaces.
//
// Stores accept a store.DBTX, so the same code runs against a plain
// connection or inside a transaction obtained via WithTx. Database
// errors are translated to store sentinel errors through MapError so
// callers never depend on driver-specific error types.
package postgres
