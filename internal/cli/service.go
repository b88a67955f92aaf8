package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/observability"
	"github.com/ppiankov/crisisfeed/internal/pipeline"
	"github.com/ppiankov/crisisfeed/internal/publish"
)

// runtimeEnv is everything a command needs to run aggregations
type runtimeEnv struct {
	cfg     *model.Config
	logger  *slog.Logger
	svc     *pipeline.Service
	metrics *observability.Metrics
}

// newRuntime loads configuration and wires the service. When publish is
// set and Kafka brokers are configured, results are also published.
func newRuntime(withMetrics, withPublisher bool) (*runtimeEnv, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	var metrics *observability.Metrics
	if withMetrics {
		metrics = observability.NewMetrics()
	}

	svc, err := pipeline.New(cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("build service: %w", err)
	}

	if withPublisher {
		if len(cfg.Kafka.Brokers) == 0 {
			logger.Warn("publishing requested but no kafka brokers configured")
		} else {
			p, err := publish.NewKafkaPublisher(cfg.Kafka, logger)
			if err != nil {
				_ = svc.Close()
				return nil, fmt.Errorf("kafka publisher: %w", err)
			}
			svc.WithPublisher(p)
			logger.Info("publishing results", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
		}
	}

	return &runtimeEnv{cfg: cfg, logger: logger, svc: svc, metrics: metrics}, nil
}
