package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	. "github.com/DrGermanius/orderingest/internal"
	"github.com/DrGermanius/orderingest/internal/events"
	"github.com/DrGermanius/orderingest/internal/ingest"
	"github.com/DrGermanius/orderingest/internal/memstore"
)

func main() {
	//decimals at json as numbers
	//https://github.com/shopspring/decimal/issues/21
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := NewConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	z, err := newLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer z.Sync()
	sugaredLogger := z.Sugar()

	var repository IRepository
	if cfg.DatabaseURI == "" {
		sugaredLogger.Warn("DATABASE_URI is empty, orders are kept in memory")
		repository = memstore.New()
	} else {
		r, err := NewRepository(cfg.DatabaseURI, sugaredLogger)
		if err != nil {
			sugaredLogger.Fatal(err)
		}
		defer r.Close()
		repository = r
	}

	var publisher ingest.Publisher = ingest.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.PublishTimeout, sugaredLogger)
		if err != nil {
			sugaredLogger.Fatal(err)
		}
		defer p.Close()
		publisher = p
	}

	metrics := NewMetrics()
	pipeline := ingest.NewPipeline(repository, sugaredLogger,
		ingest.WithMetrics(metrics),
		ingest.WithPublisher(publisher),
		ingest.WithWorkers(cfg.ValidationWorkers),
		ingest.WithCommitTimeout(cfg.CommitTimeout),
		ingest.WithPublishTimeout(cfg.PublishTimeout),
	)

	service := NewService(repository, pipeline, sugaredLogger)
	handlers := NewHandlers(service, sugaredLogger)

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.MaxUploadSize,
		ErrorHandler: ErrorHandler(sugaredLogger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	RegisterRoutes(app, handlers)

	go func() {
		if err := app.Listen(cfg.RunAddress); err != nil {
			sugaredLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugaredLogger.Info("Shutting down service...")

	if err := app.Shutdown(); err != nil {
		sugaredLogger.Errorf("shutdown: %s", err.Error())
	}
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		c := zap.NewProductionConfig()
		c.EncoderConfig.TimeKey = "timestamp"
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return c.Build()
	}
	return zap.NewDevelopment()
}
