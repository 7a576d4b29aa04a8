// Package notificationservice assembles the trigger pipeline, the HTTP
// ingress and the metrics endpoint behind one BaseServer.
package notificationservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinywideclouds/go-emergency-notifier/internal/api"
	"github.com/tinywideclouds/go-emergency-notifier/internal/delivery"
	"github.com/tinywideclouds/go-emergency-notifier/internal/payload"
	"github.com/tinywideclouds/go-emergency-notifier/internal/pipeline"
	"github.com/tinywideclouds/go-emergency-notifier/internal/recipients"
	"github.com/tinywideclouds/go-emergency-notifier/internal/tokens"
	"github.com/tinywideclouds/go-emergency-notifier/internal/triggers"
	"github.com/tinywideclouds/go-emergency-notifier/internal/welcome"
	"github.com/tinywideclouds/go-emergency-notifier/notificationservice/config"
	"github.com/tinywideclouds/go-emergency-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[triggers.Event]
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	directory dispatch.RecipientDirectory,
	conversations dispatch.ConversationStore,
	gateway dispatch.Gateway,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// Domain
	builder := payload.NewBuilder(cfg.BrandName)
	engine := delivery.NewEngine(gateway, delivery.Config{
		BatchSize:    cfg.Delivery.BatchSize,
		BatchTimeout: cfg.Delivery.BatchTimeout,
	}, logger)
	handlers := triggers.NewHandlers(
		recipients.NewResolver(directory, logger),
		builder,
		engine,
		tokens.NewManager(directory, logger),
		welcome.NewGuard(conversations, builder.Brand(), cfg.WelcomeText, logger),
		logger,
	)
	dispatcher := triggers.NewDispatcher(logger)
	handlers.Register(dispatcher)

	// Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.EventTransformer,
		pipeline.NewProcessor(dispatcher, logger),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// Routes
	triggerAPI := api.NewTriggerAPI(dispatcher, logger)
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	mux.Handle("POST /api/v1/triggers", corsMiddleware(authMiddleware(http.HandlerFunc(triggerAPI.PostTrigger))))
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Trigger pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
