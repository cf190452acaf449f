package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatsinkai/chatsink/internal/ai"
	"github.com/chatsinkai/chatsink/internal/config"
	"github.com/chatsinkai/chatsink/internal/handlers"
	"github.com/chatsinkai/chatsink/internal/ingest"
	"github.com/chatsinkai/chatsink/internal/logger"
	"github.com/chatsinkai/chatsink/internal/media"
	"github.com/chatsinkai/chatsink/internal/media/providers/fsdir"
	"github.com/chatsinkai/chatsink/internal/platform/wagateway"
	"github.com/chatsinkai/chatsink/internal/server"
	"github.com/chatsinkai/chatsink/internal/store"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStore,
			provideGateway,
			provideBlobStorage,
			provideMaterializer,
			provideCompleter,
			provideOrchestrator,
			provideRealtime,
			provideReconciler,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideStatusHandler),
			provideServerHandler(provideReplyHandler),
			provideServerHandler(provideSendHandler),
			provideServerHandler(provideMessagesHandler),
			provideServerHandler(provideSyncHandler),
			provideServer,
		),
		fx.Invoke(
			startEventStream,
			startReconciliation,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*store.Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	st, err := store.Open(ctx, log, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return st.Close(ctx) }})
	return st, nil
}

func provideGateway(log *slog.Logger, cfg config.Config) (*wagateway.Client, error) {
	return wagateway.New(log, wagateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		Token:        cfg.Gateway.Token,
		FetchTimeout: time.Duration(cfg.Gateway.FetchTimeoutSeconds) * time.Second,
	})
}

func provideBlobStorage(cfg config.Config) (media.StorageProvider, error) {
	return fsdir.New(cfg.Blobs.Dir)
}

func provideMaterializer(log *slog.Logger, gw *wagateway.Client, storage media.StorageProvider) *media.Materializer {
	return media.NewMaterializer(log, gw, storage)
}

func provideCompleter(log *slog.Logger, cfg config.Config) *ai.Client {
	return ai.NewClient(log, ai.Config{
		BaseURL:   cfg.Reply.BaseURL,
		APIKey:    cfg.Reply.APIKey,
		Model:     cfg.Reply.Model,
		MaxTokens: cfg.Reply.MaxTokens,
		Timeout:   time.Duration(cfg.Reply.TimeoutSeconds) * time.Second,
	})
}

func provideOrchestrator(log *slog.Logger, cfg config.Config, st *store.Mongo, completer *ai.Client, gw *wagateway.Client) *ingest.Orchestrator {
	matcher := ingest.NewPhraseMatcher(cfg.Reply.TriggerPhrases)
	return ingest.NewOrchestrator(log, st, completer, gw, matcher, cfg.Reply.ContextWindow, cfg.Reply.Enabled)
}

func provideRealtime(log *slog.Logger, st *store.Mongo, mat *media.Materializer, orch *ingest.Orchestrator) *ingest.Realtime {
	return ingest.NewRealtime(log, st, mat, orch)
}

func provideReconciler(log *slog.Logger, cfg config.Config, gw *wagateway.Client, st *store.Mongo, mat *media.Materializer) *ingest.Reconciler {
	return ingest.NewReconciler(log, gw, st, mat, cfg.Sync.FetchWindow, cfg.Sync.Parallel)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log, version)
}

func provideStatusHandler(log *slog.Logger, st *store.Mongo, gw *wagateway.Client, orch *ingest.Orchestrator) *handlers.StatusHandler {
	return handlers.NewStatusHandler(log, st, gw, orch)
}

func provideReplyHandler(log *slog.Logger, orch *ingest.Orchestrator) *handlers.ReplyHandler {
	return handlers.NewReplyHandler(log, orch)
}

func provideSendHandler(log *slog.Logger, gw *wagateway.Client, st *store.Mongo) *handlers.SendHandler {
	return handlers.NewSendHandler(log, gw, st)
}

func provideMessagesHandler(log *slog.Logger, st *store.Mongo) *handlers.MessagesHandler {
	return handlers.NewMessagesHandler(log, st)
}

func provideSyncHandler(log *slog.Logger, rec *ingest.Reconciler, gw *wagateway.Client) *handlers.SyncHandler {
	return handlers.NewSyncHandler(log, rec, gw)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Handlers...)
}

func startEventStream(lc fx.Lifecycle, gw *wagateway.Client, realtime *ingest.Realtime) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			gw.Connect(ctx, realtime)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func startReconciliation(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, rec *ingest.Reconciler) error {
	var c *cron.Cron
	if cfg.Sync.Schedule != "" {
		c = cron.New()
		if _, err := c.AddFunc(cfg.Sync.Schedule, func() {
			if _, err := rec.ReconcileAll(context.Background()); err != nil {
				log.Error("scheduled reconciliation failed", slog.Any("error", err))
			}
		}); err != nil {
			return fmt.Errorf("invalid sync schedule %q: %w", cfg.Sync.Schedule, err)
		}
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if cfg.Sync.OnStart {
				go func() {
					if _, err := rec.ReconcileAll(context.Background()); err != nil {
						log.Error("startup reconciliation failed", slog.Any("error", err))
					}
				}()
			}
			if c != nil {
				c.Start()
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if c != nil {
				c.Stop()
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, cfg config.Config, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", slog.String("addr", cfg.Server.Addr))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
