// Package postgres implements the persistence interfaces from
// internal/store against PostgreSQL, including the mapping from driver
// error codes to the store's sentinel errors.
package postgres
