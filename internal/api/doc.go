// Package api contains the HTTP handlers for the generation, feedback, and
// model search endpoints, plus the mapping from domain errors to HTTP
// status codes and client-safe messages.
package api
