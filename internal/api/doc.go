// Package api contains the HTTP handlers for the batch session API.
//
// Handlers decode and validate requests with the shared helpers, call
// into the service layer, and translate service sentinel errors to HTTP
// status codes. Raw error details never reach the client.
package api
