// Package task tracks the lifecycle of generation tasks. The registry owns
// every task record and enforces the state machine transitions; the rest of
// the system observes tasks through snapshot copies.
package task
