// Package gemini implements the generation boundary interfaces on top of
// Google's Gemini API via the google.golang.org/genai SDK. It covers both
// remote operations the batch engine needs: single generate-content calls
// (optionally referencing a cached context) and the create/delete
// lifecycle of the cachedContents resource.
package gemini
