package internal

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RunAddress        = "RUN_ADDRESS"
	DatabaseURI       = "DATABASE_URI"
	AppEnv            = "APP_ENV"
	KafkaBrokers      = "KAFKA_BROKERS"
	KafkaTopic        = "KAFKA_TOPIC"
	CommitTimeout     = "COMMIT_TIMEOUT"
	PublishTimeout    = "PUBLISH_TIMEOUT"
	ValidationWorkers = "VALIDATION_WORKERS"
	MaxUploadSize     = "MAX_UPLOAD_SIZE"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultAppEnv            = "development"
	defaultKafkaTopic        = "orders.events"
	defaultCommitTimeout     = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultValidationWorkers = 4
	defaultMaxUploadSize     = 32 << 20
)

type Config struct {
	RunAddress        string
	DatabaseURI       string
	AppEnv            string
	KafkaBrokers      []string
	KafkaTopic        string
	CommitTimeout     time.Duration
	PublishTimeout    time.Duration
	ValidationWorkers int
	MaxUploadSize     int
}

// NewConfig reads flags from args, falling back to the environment (and a .env file) and then
// to defaults.
func NewConfig(args []string) (*Config, error) {
	_ = godotenv.Load()

	c := new(Config)
	fs := flag.NewFlagSet("orderingest", flag.ContinueOnError)

	var brokers string
	fs.StringVar(&c.RunAddress, "a", setEnvOrDefault(RunAddress, defaultRunAddress), "host to listen on")
	fs.StringVar(&c.DatabaseURI, "d", setEnvOrDefault(DatabaseURI, ""), "postgres connection string, empty for in-memory store")
	fs.StringVar(&c.AppEnv, "e", setEnvOrDefault(AppEnv, defaultAppEnv), "development or production")
	fs.StringVar(&brokers, "k", setEnvOrDefault(KafkaBrokers, ""), "comma separated kafka brokers, empty disables events")
	fs.StringVar(&c.KafkaTopic, "t", setEnvOrDefault(KafkaTopic, defaultKafkaTopic), "kafka topic for order events")

	timeout, err := envDuration(CommitTimeout, defaultCommitTimeout)
	if err != nil {
		return nil, err
	}
	publishTimeout, err := envDuration(PublishTimeout, defaultPublishTimeout)
	if err != nil {
		return nil, err
	}
	workers, err := envInt(ValidationWorkers, defaultValidationWorkers)
	if err != nil {
		return nil, err
	}
	uploadSize, err := envInt(MaxUploadSize, defaultMaxUploadSize)
	if err != nil {
		return nil, err
	}
	fs.DurationVar(&c.CommitTimeout, "c", timeout, "timeout of the batch commit")
	fs.DurationVar(&c.PublishTimeout, "p", publishTimeout, "how long an ingest call waits for its order events")
	fs.IntVar(&c.ValidationWorkers, "w", workers, "parallel record validators per batch")
	fs.IntVar(&c.MaxUploadSize, "m", uploadSize, "maximum request body size in bytes")

	if err = fs.Parse(args); err != nil {
		return nil, err
	}
	c.KafkaBrokers = splitAndTrim(brokers)

	return c, c.validate()
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func (c *Config) validate() error {
	if c.RunAddress == "" {
		return fmt.Errorf("%s is empty", RunAddress)
	}
	if c.CommitTimeout <= 0 {
		return fmt.Errorf("%s must be positive", CommitTimeout)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("%s must be positive", PublishTimeout)
	}
	if c.ValidationWorkers < 1 {
		return fmt.Errorf("%s must be at least 1", ValidationWorkers)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("%s must be positive", MaxUploadSize)
	}
	return nil
}

func setEnvOrDefault(env, def string) string {
	res, e := os.LookupEnv(env)
	if !e {
		res = def
	}
	return res
}

func envInt(env string, def int) (int, error) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", env, err)
	}
	return i, nil
}

func envDuration(env string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", env, err)
	}
	return d, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if val := strings.TrimSpace(p); val != "" {
			out = append(out, val)
		}
	}
	return out
}
