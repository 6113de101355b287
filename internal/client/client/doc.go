// Package client is the device side of the shopsync wire protocol.
//
// GRPCClient manages the connection to the sync server. An interceptor adds
// the access token and device id to every call and transparently refreshes
// an expired access token once before retrying; gRPC status codes are mapped
// back to sentinel errors (ErrUnavailable, ErrUnauthorized, ErrEvicted and
// the common package's validation and conflict errors).
//
// InitDatabase and RunMigrations bootstrap the local SQLite replica.
package client
