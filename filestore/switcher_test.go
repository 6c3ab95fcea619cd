package filestore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/velmie/filetransfer"
)

type doneCall struct {
	id        int64
	targetKey string
}

type recordingStatus struct {
	calls []doneCall
	err   error
}

func (s *recordingStatus) MarkDone(_ context.Context, id int64, targetKey string) error {
	s.calls = append(s.calls, doneCall{id: id, targetKey: targetKey})

	return s.err
}

type brokenBackend struct {
	*LocalBackend
	openErr error
	putErr  error
	delErr  error
}

func (b *brokenBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}

	return b.LocalBackend.Open(ctx, key)
}

func (b *brokenBackend) Put(ctx context.Context, key string, r io.Reader) error {
	if b.putErr != nil {
		return b.putErr
	}

	return b.LocalBackend.Put(ctx, key, r)
}

func (b *brokenBackend) Delete(ctx context.Context, key string) error {
	if b.delErr != nil {
		return b.delErr
	}

	return b.LocalBackend.Delete(ctx, key)
}

func request(id int64, key string) filetransfer.Request {
	return filetransfer.Request{ID: id, FileKey: key, SourceService: "old", TargetService: "new"}
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var te *filetransfer.TransferError
	require.ErrorAs(t, err, &te)
	require.Equal(t, code, te.Code)
}

func TestSwitcherTransfersAndMarksDone(t *testing.T) {
	ctx := context.Background()
	oldB, newB := newLocal(t, "old"), newLocal(t, "new")
	require.NoError(t, oldB.Put(ctx, "u/1/avatar.png", strings.NewReader("png")))
	status := &recordingStatus{}

	sw := NewSwitcher(NewRegistry(oldB, newB), status)
	require.NoError(t, sw.Transfer(ctx, request(7, "u/1/avatar.png")))

	require.Equal(t, "png", readAll(t, newB, "u/1/avatar.png"))
	require.Equal(t, []doneCall{{id: 7, targetKey: "u/1/avatar.png"}}, status.calls)

	ok, err := oldB.Exists(ctx, "u/1/avatar.png")
	require.NoError(t, err)
	require.True(t, ok, "source is kept by default")
}

func TestSwitcherDeleteSourceAndTargetKey(t *testing.T) {
	ctx := context.Background()
	oldB, newB := newLocal(t, "old"), newLocal(t, "new")
	require.NoError(t, oldB.Put(ctx, "k", strings.NewReader("data")))
	status := &recordingStatus{}

	sw := NewSwitcher(NewRegistry(oldB, newB), status,
		WithDeleteSource(true),
		WithTargetKeyFunc(func(req filetransfer.Request) string { return "archive/" + req.FileKey }),
	)
	require.NoError(t, sw.Transfer(ctx, request(1, "k")))

	require.Equal(t, "data", readAll(t, newB, "archive/k"))
	require.Equal(t, "archive/k", status.calls[0].targetKey)
	ok, err := oldB.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSwitcherSourceDeleteFailureIsNotATransferFailure(t *testing.T) {
	ctx := context.Background()
	oldB := &brokenBackend{LocalBackend: newLocal(t, "old"), delErr: errors.New("read-only")}
	require.NoError(t, oldB.Put(ctx, "k", strings.NewReader("data")))

	sw := NewSwitcher(NewRegistry(oldB, newLocal(t, "new")), &recordingStatus{}, WithDeleteSource(true))
	require.NoError(t, sw.Transfer(ctx, request(1, "k")))
}

func TestSwitcherFailureCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown service", func(t *testing.T) {
		sw := NewSwitcher(NewRegistry(newLocal(t, "old")), &recordingStatus{})
		err := sw.Transfer(ctx, request(1, "k"))
		requireCode(t, err, CodeUnknownService)
		require.ErrorIs(t, err, ErrUnknownService)
		require.Contains(t, err.Error(), `"new"`)
	})

	t.Run("source missing", func(t *testing.T) {
		sw := NewSwitcher(NewRegistry(newLocal(t, "old"), newLocal(t, "new")), &recordingStatus{})
		err := sw.Transfer(ctx, request(1, "missing"))
		requireCode(t, err, CodeSourceMissing)
		require.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("source read", func(t *testing.T) {
		oldB := &brokenBackend{LocalBackend: newLocal(t, "old"), openErr: errors.New("permission denied")}
		sw := NewSwitcher(NewRegistry(oldB, newLocal(t, "new")), &recordingStatus{})
		requireCode(t, sw.Transfer(ctx, request(1, "k")), CodeSourceRead)
	})

	t.Run("target write", func(t *testing.T) {
		oldB := newLocal(t, "old")
		require.NoError(t, oldB.Put(ctx, "k", strings.NewReader("x")))
		newB := &brokenBackend{LocalBackend: newLocal(t, "new"), putErr: errors.New("quota exceeded")}
		status := &recordingStatus{}
		sw := NewSwitcher(NewRegistry(oldB, newB), status)

		requireCode(t, sw.Transfer(ctx, request(1, "k")), CodeTargetWrite)
		require.Empty(t, status.calls)
	})

	t.Run("status update", func(t *testing.T) {
		oldB := newLocal(t, "old")
		require.NoError(t, oldB.Put(ctx, "k", strings.NewReader("x")))
		status := &recordingStatus{err: errors.New("db down")}
		sw := NewSwitcher(NewRegistry(oldB, newLocal(t, "new")), status, WithDeleteSource(true))

		requireCode(t, sw.Transfer(ctx, request(1, "k")), CodeStatusUpdate)
		ok, err := oldB.Exists(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok, "source must survive when the request was not marked done")
	})
}

func TestSwitcherFailureClassifiesWithCode(t *testing.T) {
	sw := NewSwitcher(NewRegistry(newLocal(t, "old"), newLocal(t, "new")), &recordingStatus{})
	req := request(3, "missing")
	err := sw.Transfer(context.Background(), req)

	failure := filetransfer.DefaultClassifier(context.Background(), req, err)
	require.Equal(t, CodeSourceMissing, failure.Code)
	require.Equal(t, "source file not found", failure.Message)
	require.Contains(t, failure.Trace, "caused by:")
}

func TestNewSwitcherPanicsOnNil(t *testing.T) {
	require.Panics(t, func() { NewSwitcher(nil, &recordingStatus{}) })
	require.Panics(t, func() { NewSwitcher(NewRegistry(), nil) })
}
