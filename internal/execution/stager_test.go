package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStager_Stage(t *testing.T) {
	store := &fakeStore{}
	s := NewStager(store, 1)

	input, err := s.Stage(context.Background(), []byte("payload"))
	require.NoError(t, err)

	assert.Equal(t, 7, input.Size)
	assert.Equal(t, []byte("payload"), store.uploaded)
	assert.Equal(t, "https://upload.example/abc", store.uploadURI)
}

func TestStager_SizeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "payload")
		store := &fakeStore{}

		input, err := NewStager(store, 1).Stage(context.Background(), payload)
		if err != nil {
			t.Fatalf("stage: %v", err)
		}
		if input.Size != len(payload) {
			t.Fatalf("size %d, want %d", input.Size, len(payload))
		}
		if len(store.uploaded) != len(payload) {
			t.Fatalf("uploaded %d bytes, want %d", len(store.uploaded), len(payload))
		}
	})
}

func TestStager_CreateFails(t *testing.T) {
	store := &fakeStore{createErr: errBoom}

	_, err := NewStager(store, 1).Stage(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, ErrKindStage, KindOf(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, store.uploadHits, "upload must not start after a failed reservation")
}

func TestStager_UploadFails(t *testing.T) {
	store := &fakeStore{uploadErr: errBoom}

	_, err := NewStager(store, 1).Stage(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, ErrKindStage, KindOf(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, store.uploadHits, "upload is never retried")
}

func TestStager_SizeMismatch(t *testing.T) {
	store := &fakeStore{sizeDelta: 1}

	_, err := NewStager(store, 1).Stage(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, ErrKindStage, KindOf(err))
	assert.Contains(t, err.Error(), "size mismatch")
	assert.Zero(t, store.uploadHits)
}

func TestStager_MissingUploadURI(t *testing.T) {
	_, err := NewStager(&fakeStore{noURI: true}, 1).Stage(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no upload URI")
}
