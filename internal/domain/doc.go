// Package domain contains the core entities of the generation system:
// requests, tasks, results, and feedback, along with their validation
// rules. It is independent of any infrastructure or delivery mechanism.
package domain
