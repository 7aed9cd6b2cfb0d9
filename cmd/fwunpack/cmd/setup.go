package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/javi11/fwunpack/internal/checksum"
	"github.com/javi11/fwunpack/internal/config"
	"github.com/javi11/fwunpack/internal/container"
	fwerrors "github.com/javi11/fwunpack/internal/errors"
	"github.com/javi11/fwunpack/internal/format"
	_ "github.com/javi11/fwunpack/internal/format/app"
	_ "github.com/javi11/fwunpack/internal/format/bin"
	"github.com/javi11/fwunpack/internal/logging"
	"github.com/javi11/fwunpack/internal/pathutil"
	"github.com/javi11/fwunpack/internal/progress"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// session holds what every subcommand needs after startup.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	runID  string
	closer io.Closer
}

func setup(cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	if err := pathutil.CheckFileDirectoryWritable(afero.NewOsFs(), cfg.Log.File, "log"); err != nil {
		return nil, err
	}

	logger, runID, closer := logging.Setup(cfg.Log, cmd.ErrOrStderr())
	return &session{cfg: cfg, logger: logger, runID: runID, closer: closer}, nil
}

func (sess *session) Close() {
	_ = sess.closer.Close()
}

// newEngine selects the configured checksum backend. Selection failures are
// reported as checksum engine errors.
func (sess *session) newEngine(ctx context.Context, label string) (*checksum.Engine, error) {
	tracker := progress.NewTracker(ctx, sess.logger, label).WithInterval(sess.cfg.Checksum.ProgressInterval)

	s, err := checksum.Select(checksum.Options{
		Backend:  sess.cfg.Checksum.Backend,
		Workers:  sess.cfg.Checksum.Workers,
		Progress: tracker,
		Logger:   sess.logger,
	})
	if err != nil {
		return nil, &fwerrors.ChecksumEngineError{Backend: sess.cfg.Checksum.Backend, Err: err}
	}
	return checksum.NewEngine(s), nil
}

// openInput maps the input container. A missing or unreadable input is a
// precondition failure.
func openInput(path string) (*container.View, error) {
	view, err := container.Open(path)
	if err != nil {
		return nil, &fwerrors.PreconditionError{Path: path, Reason: err.Error()}
	}
	return view, nil
}

// openDecoder maps path and creates a decoder for it. The caller closes the
// returned view.
func (sess *session) openDecoder(ctx context.Context, path string, verify bool) (*container.View, format.Decoder, *checksum.Engine, error) {
	view, err := openInput(path)
	if err != nil {
		return nil, nil, nil, err
	}

	engine, err := sess.newEngine(ctx, "Verifying "+path)
	if err != nil {
		_ = view.Close()
		return nil, nil, nil, err
	}

	dec, err := format.NewDecoder(sess.cfg.Extract.Format, view, format.Options{
		Verify: verify,
		Engine: engine,
	})
	if err != nil {
		_ = view.Close()
		return nil, nil, nil, err
	}

	return view, dec, engine, nil
}
