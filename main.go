package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dev-mohitbeniwal/trackgate/audit"
	"github.com/dev-mohitbeniwal/trackgate/capacity"
	"github.com/dev-mohitbeniwal/trackgate/collector"
	"github.com/dev-mohitbeniwal/trackgate/config"
	"github.com/dev-mohitbeniwal/trackgate/controller"
	"github.com/dev-mohitbeniwal/trackgate/dao"
	"github.com/dev-mohitbeniwal/trackgate/db"
	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/metrics"
	"github.com/dev-mohitbeniwal/trackgate/model"
	"github.com/dev-mohitbeniwal/trackgate/pdp/cache"
	"github.com/dev-mohitbeniwal/trackgate/pdp/engine"
	"github.com/dev-mohitbeniwal/trackgate/router"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.GetConfig()

	// Initialize logger
	logger.InitLogger(cfg.Log.Dir)
	defer logger.Sync()

	metrics.Register()

	// Initialize Redis
	if err := db.InitRedis(cfg.Redis); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	secrets := dao.NewSecretDAO(db.RedisClient, cfg.Redis.KeyPrefix)

	// "trackgate rotate" reads the new credential from stdin and exits.
	if len(os.Args) > 1 && os.Args[1] == "rotate" {
		if err := rotateSecret(secrets, cfg.Auth.SecretID, os.Stdin); err != nil {
			logger.Fatal("Credential rotation failed", zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize EventBus and the operator channel
	eventBus := util.NewEventBus()
	eventBus.Start(ctx)
	eventBus.Limit(util.TopicDenied, cfg.Auth.DeniedAuditLimit)
	notificationService := util.NewNotificationService(100)
	eventBus.Subscribe(util.TopicEscalation, func(ctx context.Context, e util.Event) error {
		alert, ok := e.Payload.(util.OperatorAlert)
		if !ok {
			return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Type)
		}
		return notificationService.NotifyOperators(ctx, alert)
	})

	audit.Subscribe(eventBus, audit.NewService(newAuditRepository(cfg.Elasticsearch)))

	// Authorizer
	verdicts := cache.NewVerdictCache(cfg.Auth.CacheSize)
	verdicts.Start(ctx, cfg.Auth.CacheSweepInterval)
	authorizer, err := engine.NewAuthorizer(
		secrets,
		verdicts,
		engine.AuthorizerConfig{
			SecretID:     cfg.Auth.SecretID,
			AllowTTL:     cfg.Auth.AllowTTL,
			DenyTTL:      cfg.Auth.DenyTTL,
			FetchTimeout: cfg.Auth.FetchTimeout,
		},
	)
	if err != nil {
		logger.Fatal("Failed to initialize authorizer", zap.Error(err))
	}

	// Capacity controller
	source, pushSource, err := newSource(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize metrics source", zap.Error(err))
	}
	controllerCfg := capacity.Config{
		ScaleOutThreshold: cfg.Scaling.ScaleOutThreshold,
		ScaleInThreshold:  cfg.Scaling.ScaleInThreshold,
		ScaleOutCooldown:  cfg.Scaling.ScaleOutCooldown,
		ScaleInCooldown:   cfg.Scaling.ScaleInCooldown,
		Step:              cfg.Scaling.Step,
	}
	capacityController, err := capacity.NewController(controllerCfg)
	if err != nil {
		logger.Fatal("Invalid scaling configuration", zap.Error(err))
	}
	pools := make([]model.PoolState, 0, len(cfg.Scaling.Pools))
	for _, p := range cfg.Scaling.Pools {
		pools = append(pools, model.PoolState{
			PoolID:      p.ID,
			CurrentSize: p.Initial,
			MinSize:     p.Min,
			MaxSize:     p.Max,
			Phase:       model.PhaseStable,
		})
	}
	manager, err := capacity.NewManager(
		pools,
		capacityController,
		source,
		capacity.NewEventOrchestrator(eventBus),
		eventBus,
		capacity.LoopConfig{
			SampleInterval: cfg.Scaling.SampleInterval,
			SampleTimeout:  cfg.Scaling.SampleTimeout,
			EscalateAfter:  cfg.Scaling.EscalateAfter,
		},
	)
	if err != nil {
		logger.Fatal("Failed to initialize capacity manager", zap.Error(err))
	}

	// Initialize controllers
	var sink controller.SampleSink
	if pushSource != nil {
		sink = pushSource
	}
	controllers := &controller.Controllers{
		Authorizer: controller.NewAuthorizerController(authorizer, eventBus),
		Pool:       controller.NewPoolController(manager, sink, notificationService, cfg.Scaling.SampleWindow),
	}

	var upstream *url.URL
	if cfg.Server.UpstreamURL != "" {
		upstream, err = url.Parse(cfg.Server.UpstreamURL)
		if err != nil {
			logger.Fatal("Invalid upstream URL", zap.String("url", cfg.Server.UpstreamURL), zap.Error(err))
		}
	}

	gin.SetMode(gin.ReleaseMode)
	handler := router.SetupRouter(controllers, router.Options{
		Decider:           authorizer,
		Publisher:         eventBus,
		RateLimitClient:   db.RedisClient,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
		Upstream:          upstream,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Gateway stopped with error", zap.Error(err))
	}
	eventBus.Wait()
	logger.Info("Server exiting")
}

func rotateSecret(secrets *dao.SecretDAO, secretID string, in io.Reader) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read new credential: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return secrets.Rotate(ctx, secretID, strings.TrimSpace(line))
}

func newSource(cfg *config.Configuration) (collector.Source, *collector.PushSource, error) {
	switch cfg.Scaling.Source {
	case "push":
		push := collector.NewPushSource()
		return push, push, nil
	case "host":
		return collector.NewHostSource(time.Second, cfg.Scaling.SampleWindow), nil, nil
	default:
		src, err := collector.NewPrometheusSource(cfg.Prometheus.URL, cfg.Scaling.Query, cfg.Scaling.SampleWindow)
		return src, nil, err
	}
}

func newAuditRepository(cfg config.ElasticsearchConfiguration) audit.Repository {
	if !cfg.Enabled {
		return audit.NewMemoryRepository(1000)
	}
	repo, err := audit.NewElasticsearchRepository(cfg.URL, cfg.Index)
	if err != nil {
		logger.Error("Failed to create Elasticsearch client, keeping audit trail in memory", zap.Error(err))
		return audit.NewMemoryRepository(1000)
	}
	return repo
}
