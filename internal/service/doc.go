// Package service provides the application-level operations for batch
// sessions: creating them, running them against the generation backend,
// cancelling active runs, and managing the attached context cache.
//
// Error handling principles:
//  1. Service methods return sentinel errors for expected error conditions
//  2. Unexpected errors are wrapped in BatchServiceError
//  3. Callers use errors.Is/errors.As to check for specific conditions
//  4. The API layer maps service errors to appropriate HTTP status codes
package service
