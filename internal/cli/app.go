package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MimeLyc/linklingua/internal/config"
	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/extract"
	"github.com/MimeLyc/linklingua/internal/llm"
	"github.com/MimeLyc/linklingua/internal/persistence"
	"github.com/MimeLyc/linklingua/internal/search"
	"github.com/MimeLyc/linklingua/pkg/icron"
	"github.com/MimeLyc/linklingua/pkg/log"
	"github.com/spf13/cobra"
)

// app carries what the commands share: configuration, the logger and the
// lazily opened transcript cache.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	logFile *log.FileLogger
	store   *persistence.SQLiteStore
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := log.ParseLevel(cfg.System.LogLevel)
	if cfg.System.LogFile != "" {
		fl, err := log.NewFileLogger(cfg.System.LogFile, level)
		if err != nil {
			return errs.Wrap(err, errs.ErrConfig, "cannot open log file").WithContext("path", cfg.System.LogFile)
		}
		a.logFile = fl
		a.logger = fl.Logger
	} else {
		a.logger = log.NewLoggerTo(cmd.ErrOrStderr(), level)
	}
	log.SetLogger(a.logger)
	return nil
}

func (a *app) openStore() (*persistence.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	if err := os.MkdirAll(a.cfg.System.DataDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.ErrConfig, "cannot create data directory").WithContext("dir", a.cfg.System.DataDir)
	}
	store, err := persistence.NewSQLiteStore(a.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open transcript cache: %w", err)
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.logger != nil {
			a.logger.Warn("close transcript cache: %v", err)
		}
		a.store = nil
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

func (a *app) newExtractor() (*extract.Extractor, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	opts := []extract.Option{
		extract.WithCache(store, a.cfg.Cache.TTL),
		extract.WithSearcher(search.New(a.cfg.Search.APIKey, a.cfg.Search.APIURL)),
		extract.WithLogger(a.logger.Named("extract")),
	}

	var completer extract.Completer
	if a.cfg.LLMEnabled() {
		client, err := llm.NewClient(a.cfg.LLMClientConfig())
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrConfig, "cannot create AI client")
		}
		completer = client
	} else {
		a.logger.Warn("LLM_API_KEY is not set, uncached links get the sample transcript")
	}
	return extract.New(completer, opts...), nil
}

// fetch extracts rawURL and prints the notification of a fallback.
func (a *app) fetch(ctx context.Context, out io.Writer, rawURL string) (extract.Result, error) {
	ex, err := a.newExtractor()
	if err != nil {
		return extract.Result{}, err
	}
	res, err := ex.Extract(ctx, rawURL)
	if err != nil {
		return extract.Result{}, err
	}
	if res.Cause != nil {
		a.logger.Warn("serving sample transcript: %v", res.Cause)
		if msg := errs.Notify(res.Cause, a.cfg.Study.UILanguage); msg != "" {
			fmt.Fprintln(out, msg)
		}
	}
	a.logger.Info("transcript ready: %s", extract.Describe(res))
	return res, nil
}

func (a *app) pruneJob(store *persistence.SQLiteStore) icron.Job {
	return func(ctx context.Context) {
		n, err := store.DeleteExpiredTranscripts(ctx, time.Now())
		if err != nil {
			a.logger.Warn("prune transcript cache: %v", err)
			return
		}
		if n > 0 {
			a.logger.Info("pruned %d expired transcripts", n)
		}
	}
}

// startPrune removes expired cache entries now and on the configured
// schedule. It returns nil when the cache is unavailable.
func (a *app) startPrune() *icron.Runner {
	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("cache pruning disabled: %v", err)
		return nil
	}
	job := a.pruneJob(store)
	runner, err := icron.Start(a.cfg.Cache.PruneCron, job)
	if err != nil {
		a.logger.Warn("cache pruning disabled: %v", err)
		return nil
	}
	runner.RunNow(job)
	return runner
}
