// Package adapters lets the Postgres engine run on pgxpool.Pool, sql.DB or sqlx.DB.
//
// All adapters expose the same DBAdapter interface. Reads may be routed to a replica
// pool; writes and RETURNING statements always go to the primary.
package adapters
