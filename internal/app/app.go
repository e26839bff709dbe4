package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/confirmation"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/ordering"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/rest"
	"github.com/vladislavdragonenkov/orderdesk/internal/signal"
	"github.com/vladislavdragonenkov/orderdesk/internal/ui"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

// Run поднимает хранилище, рабочие процессы, HTTP API, gRPC, метрики и outbox worker
// и работает до отмены ctx. После штатной остановки возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if cfg.SeedDemoData {
		seeded, err := SeedDemo(ctx, deps.seedStore())
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		if seeded {
			logger.WithField("order_id", DemoOrderID).Info("demo data seeded")
		}
	}

	audit, auditPing, err := initAudit(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sender, err := initSender(cfg)
	if err != nil {
		return err
	}
	if sender == nil {
		logger.Warn("confirmation url is not configured, confirm order will fail")
	}

	checker := access.NewChecker(profiles.Default())
	svc, err := ordering.NewService(ordering.Dependencies{
		Tx:          deps.tx,
		Catalog:     deps.catalog,
		Orders:      deps.orders,
		Lines:       deps.lines,
		Outbox:      deps.outbox,
		Timeline:    deps.timeline,
		Sender:      sender,
		Audit:       audit,
		Permissions: checker,
	},
		ordering.WithLogger(logger.WithField("component", "ordering")),
		ordering.WithMetrics(metrics.NewWorkflowMetrics()),
		ordering.WithGuardActivated(cfg.GuardActivated),
	)
	if err != nil {
		return err
	}
	reader := catalog.NewReader(deps.catalog, deps.orders, deps.lines, checker, logger.WithField("component", "catalog-reader"))

	sessions := ui.NewSessionRegistry(ui.Dependencies{
		Catalog:  reader,
		Orders:   reader,
		Workflow: svc,
		PageSize: cfg.PageSize,
		Logger:   logger.WithField("component", "ui"),
	}, ui.WithIdleTTL(cfg.SessionIdleTTL))
	defer sessions.Close()

	hub := signal.NewBus(logger.WithField("component", "signal-hub"))
	unsubscribe := hub.Subscribe(sessions.Broadcast)
	defer unsubscribe()

	kafkaRT, err := initKafka(cfg, hub, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to init kafka, continuing without kafka")
	}
	defer kafkaRT.close(logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewPingChecker("storage", deps.ping))
	if auditPing != nil {
		healthHandler.RegisterChecker("confirmation_audit", healthcheck.NewOptionalChecker("confirmation_audit", auditPing))
	}

	httpLogger := logger.WithField("layer", "http")
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           rest.NewRouter(rest.NewHandler(reader, svc, sessions, profiles, httpLogger), httpLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcServer, grpcHealth := newGRPCServer(reader, svc, profiles, logger)

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	startMetricsServer(runCtx, cfg.MetricsAddr, logger, healthHandler)

	outboxMetrics := metrics.NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
	worker := newOutboxWorker(cfg, deps.outbox, kafkaRT, outboxMetrics, logger)
	cleanup := newOutboxCleanup(cfg, deps.outbox, outboxMetrics, logger)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logger.Infof("http api listening on %s", httpLis.Addr())
		return serveHTTP(httpSrv, httpLis)
	})
	g.Go(func() error {
		logger.Infof("grpc server listening on %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	if cleanup != nil {
		g.Go(func() error {
			cleanup.Run(gctx)
			return nil
		})
	}
	if cfg.SessionIdleTTL > 0 {
		g.Go(func() error {
			sessions.Run(gctx, sessionSweepInterval(cfg.SessionIdleTTL))
			return nil
		})
	}
	if kafkaRT != nil && kafkaRT.consumer != nil {
		if err := kafkaRT.consumer.Start(gctx); err != nil {
			logger.WithError(err).Warn("failed to start kafka consumer")
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(httpSrv, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// loadProfiles читает профили прав и выбирает профиль по умолчанию.
func loadProfiles(cfg Config) (*access.Registry, error) {
	profiles, err := access.LoadFile(strings.TrimSpace(cfg.PermissionsFile))
	if err != nil {
		return nil, fmt.Errorf("load permission profiles: %w", err)
	}
	if name := strings.TrimSpace(cfg.DefaultProfile); name != "" {
		if err := profiles.WithDefault(name); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// initSender возвращает HTTP-клиента подтверждения или nil, если адрес не задан.
func initSender(cfg Config) (domain.ConfirmationSender, error) {
	url := strings.TrimSpace(cfg.ConfirmationURL)
	if url == "" {
		return nil, nil
	}
	client, err := confirmation.NewClient(url, confirmation.WithTimeout(cfg.ConfirmationTimeout))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newOutboxWorker(cfg Config, repo domain.OutboxRepository, kafkaRT *kafkaRuntime, m *metrics.OutboxMetrics, logger *log.Entry) *outbox.Worker {
	opts := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(m),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}

	// Без Kafka воркер выключен, события копятся в outbox.
	var publisher domain.OutboxPublisher
	if kafkaRT != nil {
		publisher = kafkaRT.publisher
		opts = append(opts, outbox.WithDLQPublisher(kafkaRT.dlq))
	}
	return outbox.NewWorker(repo, publisher, opts...)
}

// newOutboxCleanup возвращает nil, если очистка выключена или хранилище её не поддерживает.
func newOutboxCleanup(cfg Config, repo domain.OutboxRepository, m *metrics.OutboxMetrics, logger *log.Entry) *outbox.CleanupWorker {
	if cfg.OutboxRetention <= 0 {
		return nil
	}
	pruner, ok := repo.(domain.OutboxPruner)
	if !ok {
		return nil
	}
	return outbox.NewCleanupWorker(pruner,
		outbox.WithCleanupLogger(logger.WithField("component", "outbox-cleanup-worker")),
		outbox.WithCleanupMetrics(m),
		outbox.WithRetention(cfg.OutboxRetention),
	)
}

// sessionSweepInterval — шаг проверки простоя сессий: половина срока, но не реже раза в минуту.
func sessionSweepInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 2; interval < time.Minute {
		return interval
	}
	return time.Minute
}

// newGRPCServer собирает gRPC-сервер с метриками, профилем прав и health-сервисом.
func newGRPCServer(reader grpcsvc.Reader, workflow grpcsvc.Workflow, profiles *access.Registry, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.ProfileInterceptor(profiles),
	))
	grpcsvc.RegisterOrderDeskServer(server, grpcsvc.NewOrderDeskService(reader, workflow, logger.WithField("layer", "grpc")))
	grpcMetrics.InitializeMetrics(server)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing grpc stop")
		server.Stop()
	}
}
