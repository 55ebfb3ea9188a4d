// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the batch engine's core logic, allowing the scheduler and services to
// remain independent of specific database technologies.
package store
