package records

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/proto"
)

// EncodePayload serializes a payload to the JSON stored on both sides.
func EncodePayload[P Payload](p P) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

// DecodePayload parses stored JSON without validating it.
func DecodePayload[P Payload](raw []byte) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// ToWire maps a record to its wire form. The owner never goes on the wire.
func ToWire[P Payload](r Record[P]) (proto.WireRecord, error) {
	payload, err := EncodePayload(r.Payload)
	if err != nil {
		return proto.WireRecord{}, err
	}
	return proto.WireRecord{
		LocalID:        r.LocalID,
		ServerID:       r.ServerID,
		LastModifiedAt: r.LastModifiedAt,
		Tombstoned:     r.Tombstoned,
		Payload:        payload,
	}, nil
}

// ToWireBatch maps every record, failing on the first encoding error.
func ToWireBatch[P Payload](rs []Record[P]) ([]proto.WireRecord, error) {
	out := make([]proto.WireRecord, 0, len(rs))
	for _, r := range rs {
		w, err := ToWire(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// FromWire decodes and validates one wire record for owner. A tombstone may
// omit its payload; anything else must carry a valid one.
func FromWire[P Payload](owner string, w proto.WireRecord) (Record[P], error) {
	r := Record[P]{
		LocalID:        w.LocalID,
		ServerID:       w.ServerID,
		OwnerID:        owner,
		LastModifiedAt: w.LastModifiedAt,
		Tombstoned:     w.Tombstoned,
	}
	if w.LastModifiedAt <= 0 {
		return r, fieldError("lastModifiedAt", "must be positive")
	}
	if w.ServerID < 0 {
		return r, fieldError("serverId", "must not be negative")
	}

	raw := bytes.TrimSpace(w.Payload)
	empty := len(raw) == 0 || bytes.Equal(raw, []byte("null"))

	// A tombstone only has to say "this id is gone". Its payload is kept
	// when it decodes and is never validated; an undecodable one leaves the
	// zero payload.
	if w.Tombstoned {
		if !empty {
			if err := json.Unmarshal(raw, &r.Payload); err != nil {
				var zero P
				r.Payload = zero
			}
		}
		return r, nil
	}
	if empty {
		return r, fieldError("payload", "is required")
	}
	if err := json.Unmarshal(raw, &r.Payload); err != nil {
		return r, fieldError("payload", "is malformed: "+err.Error())
	}
	if err := r.Payload.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// DecodeBatch validates a whole batch before anything is applied: the first
// invalid record rejects all of them.
func DecodeBatch[P Payload](owner string, ws []proto.WireRecord) ([]Record[P], error) {
	out := make([]Record[P], 0, len(ws))
	for i, w := range ws {
		r, err := FromWire[P](owner, w)
		if err != nil {
			return nil, atIndex(err, i)
		}
		out = append(out, r)
	}
	return out, nil
}
