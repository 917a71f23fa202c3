package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/mapty/internal/api"
	"example.com/mapty/internal/auth"
	"example.com/mapty/internal/config"
	"example.com/mapty/internal/domain"
	"example.com/mapty/internal/persistence"
	"example.com/mapty/internal/publish"
	httptransport "example.com/mapty/internal/transport/http"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := persistence.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s storage: %v", cfg.Storage.Backend, err)
	}
	defer backend.Close()

	var publisher domain.EventPublisher = publish.Noop{}
	var dispatcher *publish.Dispatcher
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		producer := publish.NewKafkaProducer(brokers)
		defer producer.Close()
		registry := publish.NewSchemaRegistryClient(cfg.SchemaRegistry.URL)
		dispatcher = publish.NewDispatcher(publish.NewPublisher(producer, registry, cfg.Kafka.Topic), cfg.Kafka.QueueSize)
		go dispatcher.Start(ctx)
		publisher = dispatcher
		log.Printf("publishing workout events to %s on %v", cfg.Kafka.Topic, brokers)
	}
	opts := []domain.Option{domain.WithPublisher(publisher)}

	service := domain.NewService(persistence.NewSnapshotStore(backend, cfg.Storage.Key), opts...)
	if err := service.Load(ctx); err != nil {
		log.Fatalf("failed to load workouts: %v", err)
	}

	handler := api.NewHandler(service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	requestLogger := log.New(log.Writer(), "[http] ", log.LstdFlags)

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux,
			httptransport.RequestLogger(requestLogger),
			httptransport.CORS(cfg.CORSOrigin),
			authMiddleware.Wrap,
		))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("mapty api listening on %s (storage=%s)", cfg.HTTPAddress, cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	// stop the dispatcher after the last request so queued events are flushed
	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
