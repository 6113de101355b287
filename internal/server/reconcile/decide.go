// Package reconcile resolves pushed client records against the server's
// copy and exports deltas for pull.
package reconcile

import "github.com/dmitrijs2005/shopsync/internal/records"

// Action is what a pushed record does to the server state.
type Action int

const (
	// Create stores the record under a fresh server id.
	Create Action = iota
	// Keep leaves the server record untouched and returns it.
	Keep
	// Tombstone marks the server record deleted.
	Tombstone
	// Update overwrites the payload and clears any tombstone.
	Update
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Keep:
		return "keep"
	case Tombstone:
		return "tombstone"
	case Update:
		return "update"
	default:
		return "unknown"
	}
}

// Decide picks the action for client against the current server record,
// nil when the server has none. The server wins ties.
func Decide[P records.Payload](server *records.Record[P], client records.Record[P]) Action {
	switch {
	case server == nil:
		return Create
	case client.LastModifiedAt <= server.LastModifiedAt:
		return Keep
	case client.Tombstoned:
		return Tombstone
	default:
		return Update
	}
}
