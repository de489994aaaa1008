package internal

import (
	"fmt"
	"time"
)

// Config is read from the environment with Netflix/go-env. Durations use time.ParseDuration syntax.
type Config struct {
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	Host           string `env:"HOST,default=0.0.0.0"`
	GrpcPort       int    `env:"GRPC_PORT,default=50051"`
	HttpPort       int    `env:"HTTP_PORT,default=8080"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`

	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=500ms"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=1000"`
	HistoryPageSize      int           `env:"HISTORY_PAGE_SIZE,default=50"`

	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=8"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Validate rejects values go-env accepts but the server cannot run with.
func (c Config) Validate() error {
	switch {
	case len(c.JwtSecret) < 16:
		return fmt.Errorf("JWT_SECRET must hold at least 16 characters")
	case c.ConnectionBufferSize <= 0:
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	case c.DeliveryTimeout <= 0:
		return fmt.Errorf("DELIVERY_TIMEOUT must be positive, got %s", c.DeliveryTimeout)
	case c.MaxContentLength <= 0:
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	case c.AuthTokenDuration <= 0:
		return fmt.Errorf("AUTH_TOKEN_DURATION must be positive, got %s", c.AuthTokenDuration)
	case c.GrpcPort == c.HttpPort:
		return fmt.Errorf("GRPC_PORT and HTTP_PORT must differ, both are %d", c.GrpcPort)
	}
	return nil
}

func (c Config) GrpcAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GrpcPort)
}

func (c Config) HttpAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HttpPort)
}
