// Package gateway holds helpers shared by persistence gateway implementations.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

type draftKeyContext struct{}

const DefaultDraftKey = "default"

// WithDraftKey routes gateway calls made with ctx to the draft stored under key.
func WithDraftKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, draftKeyContext{}, key)
}

func DraftKeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(draftKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok
}

func DraftKeyOrDefault(ctx context.Context) string {
	key, ok := DraftKeyFromContext(ctx)
	if ok && key != "" {
		return key
	}
	return DefaultDraftKey
}

// ContentID addresses an upload by its payload so that re-sending the same
// file does not create a second resource.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
