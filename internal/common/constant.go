// Package common contains shared constants and sentinel errors used across
// shopsync components.
package common

// AccessTokenHeaderName is the gRPC/HTTP metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceIDHeaderName identifies the originating device of a push so the
// realtime hub can skip echoing the batch back to it.
const DeviceIDHeaderName = "device_id"
