package filestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/velmie/filetransfer"
)

// Failure codes reported by Switcher. They start above the codes reserved by
// filetransfer.DefaultClassifier.
const (
	CodeUnknownService = 10
	CodeSourceMissing  = 11
	CodeSourceRead     = 12
	CodeTargetWrite    = 13
	CodeStatusUpdate   = 14
)

// StatusUpdater records that a request has been moved.
type StatusUpdater interface {
	MarkDone(ctx context.Context, id int64, targetKey string) error
}

// StatusUpdaterFunc adapts a function to StatusUpdater.
type StatusUpdaterFunc func(ctx context.Context, id int64, targetKey string) error

// MarkDone implements StatusUpdater.
func (fn StatusUpdaterFunc) MarkDone(ctx context.Context, id int64, targetKey string) error {
	return fn(ctx, id, targetKey)
}

// TargetKeyFunc chooses the key a file is written under in the target service.
type TargetKeyFunc func(req filetransfer.Request) string

// SwitcherConfig configures a Switcher.
type SwitcherConfig struct {
	DeleteSource bool
	TargetKey    TargetKeyFunc
	Logger       filetransfer.Logger
}

func (c SwitcherConfig) withDefaults() SwitcherConfig {
	if c.TargetKey == nil {
		c.TargetKey = SameKey
	}
	if c.Logger == nil {
		c.Logger = filetransfer.NopLogger{}
	}

	return c
}

// SwitcherOption customizes a Switcher.
type SwitcherOption func(*SwitcherConfig)

// WithDeleteSource removes the source file once the request is marked done.
func WithDeleteSource(enabled bool) SwitcherOption {
	return func(cfg *SwitcherConfig) {
		cfg.DeleteSource = enabled
	}
}

// WithTargetKeyFunc overrides the target key.
func WithTargetKeyFunc(fn TargetKeyFunc) SwitcherOption {
	return func(cfg *SwitcherConfig) {
		cfg.TargetKey = fn
	}
}

// WithSwitcherLogger sets the logger.
func WithSwitcherLogger(logger filetransfer.Logger) SwitcherOption {
	return func(cfg *SwitcherConfig) {
		cfg.Logger = logger
	}
}

// SameKey keeps the source key.
func SameKey(req filetransfer.Request) string {
	return req.FileKey
}

// Switcher copies a request's file from its source service to its target service
// and marks the request done.
type Switcher struct {
	registry *Registry
	status   StatusUpdater
	cfg      SwitcherConfig
}

var _ filetransfer.Transferer = (*Switcher)(nil)

// NewSwitcher creates a transfer executor over registry.
func NewSwitcher(registry *Registry, status StatusUpdater, opts ...SwitcherOption) *Switcher {
	if registry == nil {
		panic("filetransfer filestore: registry is nil")
	}
	if status == nil {
		panic("filetransfer filestore: status updater is nil")
	}

	cfg := SwitcherConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Switcher{registry: registry, status: status, cfg: cfg.withDefaults()}
}

// Transfer implements filetransfer.Transferer.
func (s *Switcher) Transfer(ctx context.Context, req filetransfer.Request) error {
	src, err := s.backend(req.SourceService)
	if err != nil {
		return err
	}
	dst, err := s.backend(req.TargetService)
	if err != nil {
		return err
	}
	targetKey := s.cfg.TargetKey(req)

	rc, err := src.Open(ctx, req.FileKey)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return filetransfer.NewTransferError(CodeSourceMissing, "source file not found", err)
		}
		return filetransfer.NewTransferError(CodeSourceRead, "source read failed", err)
	}
	defer func() { _ = rc.Close() }()

	if err := dst.Put(ctx, targetKey, rc); err != nil {
		return filetransfer.NewTransferError(CodeTargetWrite, "target write failed", err)
	}
	if err := s.status.MarkDone(ctx, req.ID, targetKey); err != nil {
		return filetransfer.NewTransferError(CodeStatusUpdate, "request status update failed", err)
	}

	if s.cfg.DeleteSource {
		if err := src.Delete(ctx, req.FileKey); err != nil {
			s.cfg.Logger.Warn("source delete failed",
				"request_id", req.ID,
				"service", req.SourceService,
				"key", req.FileKey,
				"err", err,
			)
		}
	}
	s.cfg.Logger.Debug("file transferred",
		"request_id", req.ID,
		"from", req.SourceService,
		"to", req.TargetService,
		"key", targetKey,
	)

	return nil
}

func (s *Switcher) backend(name string) (Backend, error) {
	b, ok := s.registry.Get(name)
	if !ok {
		return nil, filetransfer.NewTransferError(
			CodeUnknownService,
			fmt.Sprintf("unknown service %q", name),
			ErrUnknownService,
		)
	}

	return b, nil
}
