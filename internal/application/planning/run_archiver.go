package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"
)

// ObjectStore uploads opaque objects. The S3 storage adapter satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
}

// RunArchiver writes a JSON snapshot of a completed run to object storage.
type RunArchiver struct {
	store  ObjectStore
	prefix string
}

// NewRunArchiver creates a RunArchiver writing under prefix
func NewRunArchiver(store ObjectStore, prefix string) *RunArchiver {
	if prefix == "" {
		prefix = "mrp-runs"
	}
	return &RunArchiver{store: store, prefix: prefix}
}

// ArchiveKey returns the object key of a run snapshot, partitioned by run day
func (a *RunArchiver) ArchiveKey(snapshot RunSnapshot) string {
	return path.Join(a.prefix, snapshot.Run.RunDate.UTC().Format("2006/01/02"), snapshot.Run.RunNumber+".json")
}

// Archive uploads the snapshot and returns its key
func (a *RunArchiver) Archive(ctx context.Context, snapshot RunSnapshot) (string, error) {
	if snapshot.ArchivedAt.IsZero() {
		snapshot.ArchivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode run snapshot: %w", err)
	}
	key := a.ArchiveKey(snapshot)
	if err := a.store.Upload(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload run snapshot %s: %w", key, err)
	}
	return key, nil
}
