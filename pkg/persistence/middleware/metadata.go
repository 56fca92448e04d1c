package middleware

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// MetadataWriter stores the reduced view of a snapshot.
type MetadataWriter interface {
	WriteMetadata(ctx context.Context, userID string, meta domain.SnapshotMetadata) error
}

// MetadataWriterFunc adapts a function to MetadataWriter.
type MetadataWriterFunc func(ctx context.Context, userID string, meta domain.SnapshotMetadata) error

// WriteMetadata calls f.
func (f MetadataWriterFunc) WriteMetadata(ctx context.Context, userID string, meta domain.SnapshotMetadata) error {
	return f(ctx, userID, meta)
}

type metadataOnly struct {
	writer MetadataWriter
}

// NewMetadataOnly returns a hybrid remote: it forwards only progress metadata
// (step, flow hash, timestamp and counts) and never returns a snapshot, so the
// full conversation stays on the device.
func NewMetadataOnly(writer MetadataWriter) ports.RemoteStore {
	return &metadataOnly{writer: writer}
}

func (m *metadataOnly) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	return m.writer.WriteMetadata(ctx, userID, domain.MetadataOf(state))
}

func (m *metadataOnly) LoadState(context.Context, string) (*domain.ChatState, error) {
	return nil, domain.ErrSnapshotNotFound
}

type localOnly struct{}

// NewLocalOnly returns a remote that stores nothing, for hosts that want the
// remote code path without any transport.
func NewLocalOnly() ports.RemoteStore {
	return localOnly{}
}

func (localOnly) SaveState(context.Context, string, *domain.ChatState) error {
	return nil
}

func (localOnly) LoadState(context.Context, string) (*domain.ChatState, error) {
	return nil, domain.ErrSnapshotNotFound
}
