package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/velmie/filetransfer"
	"github.com/velmie/filetransfer/filestore"
	"github.com/velmie/filetransfer/internal/config"
	"github.com/velmie/filetransfer/internal/logx"
	"github.com/velmie/filetransfer/redislock"
	"github.com/velmie/filetransfer/sqlstore"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   logx.Logger
	dialect  sqlstore.Dialect
	db       *sql.DB
	errors   *sqlstore.ErrorStore
	ledger   *sqlstore.Ledger
	requests *sqlstore.RequestStore
	closers  []io.Closer
}

func openApp(ctx context.Context, flags *rootFlags, logOut io.Writer) (*app, error) {
	cfg, err := flags.load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	logger, logCloser, err := logx.New(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, logCloser)
	for _, warning := range cfg.Warnings {
		logger.Warn("configuration defaulted", "detail", warning)
	}

	if err := a.openStores(ctx); err != nil {
		return nil, errors.Join(err, a.Close())
	}

	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	dialect, err := a.cfg.Database.Dialect()
	if err != nil {
		return err
	}
	a.dialect = dialect

	db, err := openDB(ctx, dialect, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db)

	opts := a.storeOptions()
	if a.errors, err = sqlstore.NewErrorStore(opts...); err != nil {
		return err
	}
	if a.ledger, err = sqlstore.NewLedger(db, a.errors); err != nil {
		return err
	}
	if a.requests, err = sqlstore.NewRequestStore(db, opts...); err != nil {
		return err
	}

	return nil
}

func openDB(ctx context.Context, dialect sqlstore.Dialect, dsn string) (*sql.DB, error) {
	if dialect == sqlstore.SQLite {
		return sqlstore.OpenSQLite(dsn)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping %s: %w", dialect, err), db.Close())
	}

	return db, nil
}

func (a *app) storeOptions() []sqlstore.Option {
	return []sqlstore.Option{
		sqlstore.WithDialect(a.dialect),
		sqlstore.WithErrorTable(a.cfg.Database.ErrorTable),
		sqlstore.WithRequestTable(a.cfg.Database.RequestTable),
		sqlstore.WithMaxMessageLen(a.cfg.Database.MaxMessageLen),
	}
}

func (a *app) newDaemon(ctx context.Context, metrics filetransfer.Metrics, runLog *filetransfer.RunLog) (*filetransfer.Daemon, error) {
	registry, err := filestore.BuildRegistry(ctx, a.cfg.Backends)
	if err != nil {
		return nil, err
	}
	switcher := filestore.NewSwitcher(registry, a.requests,
		filestore.WithDeleteSource(a.cfg.DeleteSource),
		filestore.WithSwitcherLogger(a.logger),
	)

	if metrics == nil {
		metrics = filetransfer.NopMetrics{}
	}
	if runLog == nil {
		runLog = filetransfer.NewRunLog()
	}
	opts := []filetransfer.DaemonOption{
		filetransfer.WithBatchSize(a.cfg.UploadLimit),
		filetransfer.WithLogger(a.logger),
		filetransfer.WithMetrics(metrics),
		filetransfer.WithRunLog(runLog),
		filetransfer.WithTransferTimeout(a.cfg.TransferTimeout),
		filetransfer.WithTransferRate(a.cfg.TransferRate, a.cfg.TransferBurst),
	}
	locker, err := a.newLocker()
	if err != nil {
		return nil, err
	}
	if locker != nil {
		opts = append(opts, filetransfer.WithLocker(locker))
	}

	return filetransfer.NewDaemon(a.requests, switcher, a.ledger, opts...), nil
}

func (a *app) newLocker() (filetransfer.Locker, error) {
	switch a.cfg.Lock.Type {
	case config.LockDatabase:
		return sqlstore.NewAdvisoryLocker(a.db, a.dialect, a.cfg.Lock.Name)
	case config.LockRedis:
		client, err := redislock.NewClient(a.cfg.Lock.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)

		return redislock.New(client, redislock.Config{Key: a.cfg.Lock.Name, TTL: a.cfg.Lock.TTL})
	default:
		return nil, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	return errors.Join(errs...)
}
