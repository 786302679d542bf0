package execution

import (
	"context"
	"fmt"

	"yqhp/luau-runner/pkg/logger"
	"yqhp/luau-runner/pkg/types"
)

// BinaryStore reserves upload slots and writes payloads into them.
type BinaryStore interface {
	CreateBinaryInput(ctx context.Context, universeID int64, size int) (*types.BinaryInput, error)
	UploadBinary(ctx context.Context, uploadURI string, data []byte) error
}

// Stager uploads a binary payload so a task can reference it.
type Stager struct {
	store      BinaryStore
	universeID int64
}

// NewStager creates a Stager for universeID.
func NewStager(store BinaryStore, universeID int64) *Stager {
	return &Stager{store: store, universeID: universeID}
}

// Stage reserves a slot sized for payload and uploads payload into it.
// Nothing is retried.
func (s *Stager) Stage(ctx context.Context, payload []byte) (*types.BinaryInput, error) {
	logger.Info("Uploading test binary (%d bytes)...", len(payload))

	input, err := s.store.CreateBinaryInput(ctx, s.universeID, len(payload))
	if err != nil {
		return nil, NewError(ErrKindStage, "create binary input request failed", err)
	}
	if input.Size != len(payload) {
		return nil, NewError(ErrKindStage,
			fmt.Sprintf("binary input size mismatch: requested %d, service reserved %d", len(payload), input.Size), nil)
	}
	if input.UploadURI == "" {
		return nil, NewError(ErrKindStage, "binary input response carried no upload URI", nil)
	}

	if err := s.store.UploadBinary(ctx, input.UploadURI, payload); err != nil {
		return nil, NewError(ErrKindStage, "failed to upload binary input", err)
	}

	logger.Info("Successfully uploaded test binary")
	return input, nil
}
