package ctxkey

import "context"

type key int

const (
	kRequestID key = iota
	kSessionID
	kSyncSession
)

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(kRequestID).(string); ok {
		return id
	}
	return ""
}

func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, kRequestID, id)
}

func GetSessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(kSessionID).(string); ok {
		return id
	}
	return ""
}

func SetSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, kSessionID, id)
}

// GetSyncSession returns the reconnect-drain identifier carried as the
// X-Sync-Session header while the sync manager drains the offline store.
func GetSyncSession(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(kSyncSession).(string); ok {
		return id
	}
	return ""
}

func SetSyncSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, kSyncSession, id)
}
