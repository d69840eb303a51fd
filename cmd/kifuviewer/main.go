package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kifu_viewer/internal/adapters"
	"kifu_viewer/internal/bootstrap"
	kifuDelivery "kifu_viewer/internal/delivery/kifu"
	ownMiddleware "kifu_viewer/internal/middleware"
	"kifu_viewer/internal/pending"
	"kifu_viewer/internal/repository"
	kifuUC "kifu_viewer/internal/usecase/kifu"
)

type dataBaseAdapters struct {
	redisAdapter *adapters.AdapterRedis
	mongoAdapter *adapters.AdapterMongo
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "kifuviewer",
		Short:        "Go kifu (SGF) viewer backend",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newFmtCommand(), newValidateCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Run the HTTP API; an optional record file is handed to the first client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			launchFile := ""
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				launchFile = abs
			}
			return serve(cfgPath, launchFile)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", ".env", "path to the dotenv config file")
	return cmd
}

func serve(cfgPath string, launchFile string) error {
	logger := NewLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := bootstrap.Setup(cfgPath)
	if err != nil {
		logger.Error("Failed to setup configuration", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleShutdown(cancel, logger)

	databaseAdapters, err := initDatabaseAdapters(ctx, logger, *cfg)
	if err != nil {
		return err
	}
	defer databaseAdapters.mongoAdapter.Close(context.Background())
	defer databaseAdapters.redisAdapter.Close(context.Background())

	pendingOpen := pending.NewOpenFile()
	if launchFile != "" {
		pendingOpen.Set(launchFile)
		logger.Infow("launch file queued", "path", launchFile)
	}

	archive := repository.NewArchiveRepository(*cfg, logger, databaseAdapters.mongoAdapter.Database)
	if err = archive.EnsureIndexes(ctx); err != nil {
		logger.Warnw("archive indexes not created", "error", err)
	}

	useCase := kifuUC.NewKifuUseCase(*cfg, logger,
		repository.NewFileStorage(cfg.DataDir, logger),
		repository.NewKifuRedisStorage(databaseAdapters.redisAdapter.GetClient(), cfg.KifuTTL, logger),
		archive,
		pendingOpen,
	)
	useCase.SetLaunchFiles(repository.NewLocalFileStorage(logger))
	handler := kifuDelivery.NewKifuHandler(*cfg, logger, useCase)

	r := chi.NewRouter()
	if cfg.IsLocalCors {
		r.Use(ownMiddleware.CORS)
	}
	r.Use(middleware.Logger)
	handler.Routes(r)

	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Server is running on port %s", srv.Addr)
	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start server", zap.Error(err))
		return err
	}
	return nil
}

func NewLogger() *zap.SugaredLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func initDatabaseAdapters(ctx context.Context, log *zap.SugaredLogger, cfg bootstrap.Config) (*dataBaseAdapters, error) {
	mongoAdapter := adapters.NewAdapterMongo(&cfg, log)
	if err := mongoAdapter.Init(ctx); err != nil {
		log.Error("Не удалось инициализировать MongoDB", zap.Error(err))
		return nil, err
	}

	redisAdapter := adapters.NewAdapterRedis(&cfg, log)
	if err := redisAdapter.Init(ctx); err != nil {
		log.Error("Не удалось инициализировать Redis", zap.Error(err))
		_ = mongoAdapter.Close(ctx)
		return nil, err
	}

	log.Info("Адаптеры баз данных инициализированы")
	return &dataBaseAdapters{
		redisAdapter: redisAdapter,
		mongoAdapter: mongoAdapter,
	}, nil
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
}
