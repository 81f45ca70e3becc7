// Package postgres manages database connections and schema migrations.
//
// ConnectionManager holds a primary connection for writes plus optional
// read replicas selected round-robin. RunMigrations applies versioned
// schema migrations inside transactions and records them in the
// schema_migrations table.
package postgres
