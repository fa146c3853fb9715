// Package llm wraps the OpenAI API for the AI-assisted operations:
// rule selection, cold email detection, sender categorization, and
// calendar event extraction.
//
// Every operation uses structured outputs (JSON schema response format)
// so model replies parse deterministically. Prompt building and
// response parsing are separated from transport to keep them testable
// without network access.
package llm
