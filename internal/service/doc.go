// Package service contains the application-specific use cases. It
// orchestrates the generation pipeline (validation, cache memoization,
// provider dispatch, task finalization) and the feedback workflow, keeping
// HTTP concerns in the api package and persistence in the store
// implementations.
package service
