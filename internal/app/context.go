package app

import (
	"fmt"
	"os"
	"time"

	"leadline/internal/config"
	"leadline/internal/events"
	"leadline/internal/ideation"
)

// ResolveConfig loads leadline.yml from the workspace, seeding a default
// config on first run so the CLI works out of the box. ownerOverride
// (when non-empty) names the owner for a freshly seeded config only; an
// existing file always wins.
func ResolveConfig(workspace, ownerOverride string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	owner := ownerOverride
	if owner == "" {
		owner = "local-operator"
	}
	path := config.Path(workspace)
	if err := os.WriteFile(path, []byte(config.GenerateDefault(owner)), 0o644); err != nil {
		return nil, fmt.Errorf("seed config %s: %w", path, err)
	}
	return config.Default(owner), nil
}

// NewIdeationClient builds the text-generation client from config. The
// API key is read from the configured environment variable, never from
// the config file itself.
func NewIdeationClient(cfg *config.Config) *ideation.Client {
	apiKey := ""
	if cfg.Ideation.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.Ideation.APIKeyEnv)
	}
	return ideation.NewClient(
		cfg.Ideation.BaseURL,
		cfg.Ideation.Model,
		apiKey,
		time.Duration(cfg.Ideation.TimeoutSeconds)*time.Second,
	)
}

// NewBus returns the configured event bus. With a NATS URL the bus
// spans processes; otherwise an in-process bus serves the local feed.
func NewBus(cfg *config.Config) (events.Publisher, events.Subscriber, func(), error) {
	if cfg.Bus.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Bus.NATSURL)
		if err != nil {
			return nil, nil, nil, err
		}
		sub, err := events.NewNATSSubscriber(cfg.Bus.NATSURL)
		if err != nil {
			pub.Close()
			return nil, nil, nil, err
		}
		closeAll := func() {
			_ = pub.Close()
			_ = sub.Close()
		}
		return pub, sub, closeAll, nil
	}
	bus := events.NewBus()
	return bus, bus, func() { _ = bus.Close() }, nil
}
