// Package generation provides the boundary interfaces for the two opaque
// remote operations the batch engine depends on: generating an answer for
// a single prompt, and creating/deleting the server-side context cache.
// It abstracts the details of the LLM API integration (Gemini), allowing
// the scheduler and cache coordinator to run against any transport.
package generation
