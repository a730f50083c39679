package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"posmirror/internal/event"
	"posmirror/internal/metrics"
	"posmirror/internal/replicate"
	"posmirror/internal/warehouse"
)

// Config holds CLI flags for the replicator. Flag defaults can be overridden
// per deployment through the environment (.env is loaded when present).
type Config struct {
	KafkaBootstrap string
	GroupID        string
	TopicEvents    string
	WarehouseDSN   string
	HTTPAddr       string
	MaxOpenConns   int
	InitSchema     bool
}

func main() {
	_ = godotenv.Load()
	cfg := readFlags()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("replicator failed", zap.Error(err))
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", envOr("KAFKA_BOOTSTRAP", "localhost:9092"), "kafka bootstrap servers")
	flag.StringVar(&cfg.GroupID, "group-id", envOr("KAFKA_GROUP_ID", "pos-replicator"), "consumer group id")
	flag.StringVar(&cfg.TopicEvents, "topic-events", envOr("TOPIC_EVENTS", "pos.change-events"), "change event topic")
	flag.StringVar(&cfg.WarehouseDSN, "warehouse-dsn", envOr("WAREHOUSE_DSN", "postgres://localhost:5432/pos_warehouse?sslmode=disable"), "warehouse connection string")
	flag.StringVar(&cfg.HTTPAddr, "http", envOr("HTTP_ADDR", ":8080"), "http listen for /metrics and /healthz")
	flag.IntVar(&cfg.MaxOpenConns, "max-open-conns", 8, "warehouse connection pool size")
	flag.BoolVar(&cfg.InitSchema, "init-schema", false, "create replica tables before consuming")
	flag.Parse()
	return cfg
}

func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(cfg Config, logger *zap.Logger) error {
	logger.Info("starting replicator",
		zap.String("bootstrap", cfg.KafkaBootstrap),
		zap.String("topic", cfg.TopicEvents),
		zap.String("group", cfg.GroupID))

	// The warehouse handle is built once here and passed down; handlers
	// treat it as read-only.
	db, err := warehouse.Open(cfg.WarehouseDSN, cfg.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer db.Close()

	mreg := metrics.NewRegistry()
	go func() {
		http.Handle("/metrics", mreg.Handler())
		http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		})
		_ = http.ListenAndServe(cfg.HTTPAddr, nil)
	}()

	wh := warehouse.NewClient(db, logger)
	if cfg.InitSchema {
		if err := wh.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	disp := replicate.NewDispatcher(wh, logger, mreg)

	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBootstrap,
		"group.id":           cfg.GroupID,
		"enable.auto.commit": false,
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer c.Close()
	if err := c.SubscribeTopics([]string{cfg.TopicEvents}, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		default:
		}

		msg, err := c.ReadMessage(time.Second)
		if err != nil {
			// poll timeout or transient broker error
			continue
		}

		if ev, err := decodeMessage(msg); err != nil {
			mreg.Failed.Inc()
			logger.Error("dropping undecodable event",
				zap.String("key", string(msg.Key)),
				zap.String("error_kind", string(replicate.KindDecode)),
				zap.Error(err))
		} else {
			disp.Dispatch(ctx, ev)
		}

		// Commit regardless of outcome: the event source is never blocked
		// and there is no negative acknowledgement.
		if _, err := c.CommitMessage(msg); err != nil {
			logger.Error("commit offset", zap.Error(err))
		}
	}
}

// decodeMessage parses a change event. A nil payload is a tombstone: the
// entity type travels in headers and the document key in the message key.
func decodeMessage(msg *ck.Message) (event.ChangeEvent, error) {
	if len(msg.Value) == 0 {
		ev := event.ChangeEvent{Kind: event.KindDeleted, Key: string(msg.Key)}
		for _, h := range msg.Headers {
			if h.Key == "entityType" {
				ev.EntityType = event.Type(h.Value)
			}
		}
		if ev.EntityType == "" || ev.Key == "" {
			return event.ChangeEvent{}, fmt.Errorf("tombstone missing key or entityType header")
		}
		return ev, nil
	}
	return event.Decode(msg.Value)
}
