package repository

import (
	"context"
	"errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore keeps the flat JSON snapshot of each session's conversation.
// Writes are best-effort and uncoordinated: one writer per session is assumed.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, data []byte) error
	Delete(ctx context.Context, sessionID string) error
}
