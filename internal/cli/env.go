package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/config"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/dispatch"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/logging"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/reducer"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/replay"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/session"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/store"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/store/kvstore"
)

// Persistence is a store the CLI opened and must close.
type Persistence interface {
	replay.Persistence
	Close() error
}

// env is what every command needs: configuration, an open store and the
// collaborators wired to one logger and one metrics registry.
type env struct {
	cfg       *config.Config
	store     Persistence
	logger    *zap.Logger
	level     zap.AtomicLevel
	metrics   *metrics.Metrics
	schema    *event.Schema
	deviceID  string
	formatter *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openEnv loads configuration, applies flag overrides and opens the store.
// Failures are reported through the formatter and returned as exit code 2.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	f := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Database != "" {
		cfg.DB.Path = opts.Database
	}
	if opts.Backend != "" {
		cfg.DB.Backend = opts.Backend
	}
	if opts.DeviceID != "" {
		cfg.Device.ID = opts.DeviceID
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, level, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, fmt.Sprintf("logger: %v", err), nil)
	}

	deviceID, err := cfg.ResolveDeviceID()
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	st, err := OpenStore(cfg.DB.Backend, cfg.DB.Path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	schema, err := event.NewSchema()
	if err != nil {
		st.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, fmt.Sprintf("event schema: %v", err), nil)
	}

	f.VerboseLog("Using %s database %s as device %s", cfg.DB.Backend, cfg.DB.Path, deviceID)
	return &env{
		cfg:       cfg,
		store:     st,
		logger:    logger,
		level:     level,
		metrics:   metrics.New(),
		schema:    schema,
		deviceID:  deviceID,
		formatter: f,
	}, nil
}

// OpenStore opens the persistence backend at path, creating parent
// directories as needed.
func OpenStore(backend, path string) (Persistence, error) {
	switch backend {
	case config.BackendBadger:
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		s, err := kvstore.Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendSQLite, "":
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close store", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func (e *env) dispatcher() *dispatch.Dispatcher {
	return dispatch.New(reducer.Default(), e.schema,
		dispatch.WithLogger(e.logger),
		dispatch.WithMetrics(e.metrics),
	)
}

func (e *env) loader() *replay.Loader {
	return replay.NewLoader(e.dispatcher(),
		replay.WithLogger(e.logger),
		replay.WithLevel(e.level),
		replay.WithMetrics(e.metrics),
	)
}

func (e *env) session(ctx context.Context, opts ...session.Option) (*session.Session, error) {
	base := []session.Option{
		session.WithLogger(e.logger),
		session.WithLevel(e.level),
		session.WithMetrics(e.metrics),
		session.WithSchema(e.schema),
		session.WithSnapshotEvery(e.cfg.Snapshot.Every),
	}
	return session.Open(ctx, e.store, e.deviceID, append(base, opts...)...)
}

// failErr reports err using its errs code when it has one.
func (e *env) failErr(exit int, fallback string, err error) error {
	code := fallback
	if c := errs.CodeOf(err); c != "" {
		code = string(c)
	}
	return e.formatter.Fail(exit, code, err.Error(), nil)
}
