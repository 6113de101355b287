// Package proto defines the wire contract between shopsync clients and the
// sync server: plain message structs, a CBOR gRPC codec, and hand-written
// service descriptors for the SyncService.
//
// The same structs double as the JSON frames of the websocket gateway, so
// every field carries both cbor and json tags.
package proto

import "encoding/json"

// WireRecord is one record as it crosses the network. LocalID is only a
// correlation hint: the server never treats it as identity, it just echoes
// it back so the client can claim its own freshly created row.
type WireRecord struct {
	LocalID        int64           `cbor:"1,keyasint,omitempty" json:"localId,omitempty"`
	ServerID       int64           `cbor:"2,keyasint,omitempty" json:"serverId,omitempty"`
	LastModifiedAt int64           `cbor:"3,keyasint" json:"lastModifiedAt"`
	Tombstoned     bool            `cbor:"4,keyasint,omitempty" json:"tombstoned,omitempty"`
	Payload        json.RawMessage `cbor:"5,keyasint,omitempty" json:"payload,omitempty"`
}

type PushRequest struct {
	Kind    string       `cbor:"1,keyasint" json:"kind"`
	Records []WireRecord `cbor:"2,keyasint" json:"records"`
}

type PushResponse struct {
	Records    []WireRecord `cbor:"1,keyasint" json:"records"`
	ServerTime int64        `cbor:"2,keyasint" json:"serverTime"`
}

// PullRequest asks for everything changed after Watermark. A nil watermark
// means "everything", which is what a brand-new device sends.
type PullRequest struct {
	Kind      string `cbor:"1,keyasint" json:"kind"`
	Watermark *int64 `cbor:"2,keyasint,omitempty" json:"watermark,omitempty"`
}

type PullResponse struct {
	Records    []WireRecord `cbor:"1,keyasint" json:"records"`
	ServerTime int64        `cbor:"2,keyasint" json:"serverTime"`
}

type SubscribeRequest struct {
	Kind string `cbor:"1,keyasint" json:"kind"`
}

// SyncEvent is the only realtime message: the resolved batch of one push.
type SyncEvent struct {
	Kind       string       `cbor:"1,keyasint" json:"kind"`
	Records    []WireRecord `cbor:"2,keyasint" json:"records"`
	ServerTime int64        `cbor:"3,keyasint" json:"serverTime"`
}

type RegisterRequest struct {
	Username string `cbor:"1,keyasint" json:"username"`
	Password []byte `cbor:"2,keyasint" json:"password"`
}

type RegisterResponse struct {
	UserID string `cbor:"1,keyasint" json:"userId"`
}

type LoginRequest struct {
	Username string `cbor:"1,keyasint" json:"username"`
	Password []byte `cbor:"2,keyasint" json:"password"`
}

type LoginResponse struct {
	UserID       string `cbor:"1,keyasint" json:"userId"`
	AccessToken  string `cbor:"2,keyasint" json:"accessToken"`
	RefreshToken string `cbor:"3,keyasint" json:"refreshToken"`
}

type RefreshTokenRequest struct {
	RefreshToken string `cbor:"1,keyasint" json:"refreshToken"`
}

type RefreshTokenResponse struct {
	AccessToken  string `cbor:"1,keyasint" json:"accessToken"`
	RefreshToken string `cbor:"2,keyasint" json:"refreshToken"`
}
