package records

// SyncState is local-only bookkeeping; it never crosses the network.
type SyncState int

const (
	Unsynced SyncState = iota
	Synced
)

func (s SyncState) String() string {
	if s == Synced {
		return "synced"
	}
	return "unsynced"
}

// Record is one synced entity of payload type P.
//
// ServerID is zero until the server has accepted the record. LastModifiedAt
// is in milliseconds since the epoch and never moves backwards for a given
// logical record.
type Record[P Payload] struct {
	LocalID        int64
	ServerID       int64
	OwnerID        string
	Payload        P
	LastModifiedAt int64
	Tombstoned     bool
	SyncState      SyncState
}

func (r Record[P]) HasServerID() bool { return r.ServerID != 0 }

// KindOf reports the kind served by payload type P.
func KindOf[P Payload]() Kind {
	var p P
	switch any(p).(type) {
	case Transaction:
		return KindTransaction
	case Product:
		return KindProduct
	case Service:
		return KindService
	default:
		panic("records: unsupported payload type")
	}
}
