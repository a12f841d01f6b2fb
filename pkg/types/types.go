// Package types defines the core domain model shared across hardwarden.
package types

// PlayerID uniquely identifies a tracked player by name.
type PlayerID string

// EventKind classifies a normalized server log line.
type EventKind string

// Log line classifications.
const (
	EventJoin    EventKind = "join"    // A tracked player joined the game
	EventLeave   EventKind = "leave"   // A tracked player left the game
	EventDeath   EventKind = "death"   // A tracked player died
	EventIgnored EventKind = "ignored" // Line carries no tracked event
)

// Event is the result of classifying one server log line.
type Event struct {
	Kind   EventKind
	Player PlayerID // Set for join/leave/death, empty for ignored
}

// Penalty is the verdict produced after a death event.
//
// Rewind is never produced by the shipped dice ritual, but the recovery
// control flow treats it as a first-class verdict with its own behavior
// (restore from backup instead of deleting the world outright).
type Penalty string

const (
	PenaltyNone   Penalty = "none"   // Session continues
	PenaltyRewind Penalty = "rewind" // Restore world from the last checkpoint
	PenaltyReset  Penalty = "reset"  // Destroy world and backup, start fresh
)
