// Package domain contains the records exchanged with the business backend
// and the conversation types produced by agent sessions.
package domain
