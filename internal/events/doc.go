// Package events provides types and interfaces for publishing batch
// lifecycle events.
//
// Services emit events without knowing which handlers will process them,
// which keeps the batch engine decoupled from consumers such as audit
// logging or future notification channels.
package events
