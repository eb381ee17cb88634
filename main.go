package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"example.com/openchat/cmd/server"
	"example.com/openchat/cmd/worker"
	appkafka "example.com/openchat/internal/broker"
	"example.com/openchat/internal/chat"
	config "example.com/openchat/internal/init"
	"example.com/openchat/internal/journal"
	"example.com/openchat/internal/logger"
	"example.com/openchat/internal/store"
)

var logg = logger.New()

func main() {
	// Initialize application configuration
	cfg := config.Init()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	defer logg.Sync()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case "server":
		runServer(ctx, cfg, kafkaCfg)
	case "worker":
		runWorker(ctx, cfg, kafkaCfg)
	default:
		log.Fatalf("unknown mode: %s", cfg.Mode)
	}

	logg.Info("main", "Shutdown completed")
}

// runServer rebuilds the registry from the journal when it is enabled, then
// records every new mutation to Kafka while serving HTTP.
func runServer(ctx context.Context, cfg *config.Config, kafkaCfg appkafka.KafkaConfig) {
	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET must be set in server mode")
	}
	reg := chat.NewRegistry()

	if cfg.JournalEnabled {
		st, err := store.New(cfg)
		if err != nil {
			log.Fatalf("Cassandra connection failed: %v", err)
		}
		stats, err := journal.Load(st, reg)
		st.Close()
		if err != nil {
			log.Fatalf("journal replay failed: %v", err)
		}
		logg.Info("main", fmt.Sprintf("Registry restored: %d users, sequence %d", reg.NumberOfUsers(), stats.LastSeq))

		kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
		defer kafkaWriter.Close()

		// attach only after replay, or replayed events would be written again
		reg.Observe(journal.NewRecorder(kafkaWriter))
	} else {
		logg.Warn("main", "Journal disabled, registry lives in memory only")
	}

	err := server.Run(ctx, reg, server.Options{
		Addr:      cfg.ServerAddr,
		CertFile:  cfg.TLSCertFile,
		KeyFile:   cfg.TLSKeyFile,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.JWTTTL,
	})
	if err != nil {
		logg.Error("main", "Server failed", err)
	}
}

// runWorker appends events from Kafka to the Cassandra journal until ctx is done.
func runWorker(ctx context.Context, cfg *config.Config, kafkaCfg appkafka.KafkaConfig) {
	if !cfg.JournalEnabled {
		log.Fatalf("worker mode needs JOURNAL_ENABLED=true")
	}

	st, err := store.New(cfg)
	if err != nil {
		log.Fatalf("Cassandra connection failed: %v", err)
	}

	w := worker.New(st, appkafka.NewKafkaReader(kafkaCfg), cfg.WorkerCount, cfg.WorkerQueueSize)
	w.Run(ctx)
	if err := w.Close(); err != nil {
		logg.Error("main", "Worker close failed", err)
	}
}
