// Package models defines the domain entities for the chatbot conversion dashboard.
// These models represent raw spreadsheet rows, reconciled chat users, time-bucketed
// statistics and the final analysis handed to presentation collaborators.
// All derived models include built-in validation to ensure data integrity throughout the pipeline.
//
// Terminology (matching the exports' own naming):
//   - Interaction row: one contact of a user with the chatbot (chat export).
//   - Registration row: one person on a city's registration roster (estudiantes export).
//   - Conversion: a chat user whose phone appears on the roster.
package models

// RawInteractionRow is a chat export row after alias resolution. Values keep whatever
// type the reader produced (string, float64, time.Time or nil) and are coerced later.
type RawInteractionRow struct {
	Identifier  any
	DisplayName any
	Phone       any
	Age         any
	Timestamp   any
}

// RawRegistrationRow is a roster row after alias resolution.
type RawRegistrationRow struct {
	Name         any
	Phone        any
	Status       any
	RegisteredAt any
}
