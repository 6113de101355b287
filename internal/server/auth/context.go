package auth

import "context"

type ctxKey int

const (
	userIDKey ctxKey = iota
	deviceIDKey
)

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom returns the authenticated owner, if any.
func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

// DeviceIDFrom returns the calling device, or "" when it did not identify itself.
func DeviceIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(deviceIDKey).(string)
	return v
}
