package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/hush-client/internal/config"
	"github.com/samvad-hq/hush-client/internal/logger"
	"github.com/samvad-hq/hush-client/internal/output"
	"github.com/samvad-hq/hush-client/internal/storage"
	"github.com/samvad-hq/hush-client/pkg/apiclient"
	"github.com/samvad-hq/hush-client/pkg/publishers"
)

// Session is the client runtime shared by the demonstration and the REPL. It
// owns the API client, the token store and the telemetry fanout.
type Session struct {
	cfg        *config.Config
	client     *apiclient.Client
	clientCfg  apiclient.Config
	clientOpts []apiclient.Option
	fanout     *publishers.Fanout
	dispatcher *publishers.Dispatcher
	store      storage.Store
	out        *output.Printer
	log        logger.Logger
}

// NewSession builds a session from cfg. Telemetry sinks are only built when a
// publishers file is configured.
func NewSession(ctx context.Context, cfg *config.Config, log logger.Logger, out *output.Printer) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if out == nil {
		return nil, fmt.Errorf("printer must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		TokenTTL:        cfg.TokenTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"token_ttl_seconds":        int(cfg.TokenTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	s := &Session{
		cfg:   cfg,
		store: store,
		out:   out,
		log:   log,
		clientCfg: apiclient.Config{
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
			AuthToken: cfg.AuthToken,
			UserAgent: cfg.UserAgent,
			Retry: apiclient.RetryPolicy{
				MaxAttempts: cfg.RetryMaxAttempts,
				NewBackOff:  apiclient.ExponentialBackOff(cfg.RetryInitialInterval, cfg.RetryMaxInterval),
			},
		},
		clientOpts: []apiclient.Option{
			apiclient.WithLogger(log),
			apiclient.WithPayloadValidation(),
		},
		fanout: fanout,
	}
	if fanout.Size() > 0 {
		s.dispatcher = publishers.NewDispatcher(fanout, log, publishers.DispatcherOptions{
			QueueSize:      cfg.PublishQueueSize,
			PublishTimeout: cfg.PublishTimeout,
		})
		s.clientOpts = append(s.clientOpts, apiclient.WithObserver(s.dispatcher))
	}

	s.client, err = s.newClient(cfg.AuthToken)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// newClient returns a client sharing the session configuration but carrying
// its own token, so demonstration steps do not leak credentials into each other.
func (s *Session) newClient(token string) (*apiclient.Client, error) {
	cfg := s.clientCfg
	cfg.AuthToken = token
	client, err := apiclient.New(cfg, s.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build api client: %w", err)
	}
	return client, nil
}

// Client returns the session's long-lived API client.
func (s *Session) Client() *apiclient.Client { return s.client }

// Close releases the token store, then flushes queued telemetry before
// closing the sinks.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := s.dispatcher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("flush telemetry: %w", err))
	}
	if err := s.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	return errors.Join(errs...)
}
