package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

// Config points the suite at a running relay seeded with `seed -env`.
type Config struct {
	GrpcAddr string `envconfig:"RELAY_GRPC_ADDR"`
	HttpAddr string `envconfig:"RELAY_HTTP_ADDR" default:"localhost:8080"`

	AliceID        string `envconfig:"E2E_ALICE_ID"`
	AliceToken     string `envconfig:"E2E_ALICE_TOKEN"`
	BobID          string `envconfig:"E2E_BOB_ID"`
	BobToken       string `envconfig:"E2E_BOB_TOKEN"`
	ConversationID string `envconfig:"E2E_CONVERSATION_ID"`

	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
