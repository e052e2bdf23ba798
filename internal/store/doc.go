// Package store defines persistence interfaces and their shared error
// vocabulary. Implementations live under internal/platform; services depend
// only on these interfaces.
package store
