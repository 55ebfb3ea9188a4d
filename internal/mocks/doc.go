// Package mocks provides centralized mock implementations for testing.
//
// Instead of defining inline mocks in individual test files, the mock
// implementations of the generation and store interfaces live here and are
// reused across test packages. Each mock exposes function fields to
// override behavior per test case, plus call tracking for verification.
package mocks
