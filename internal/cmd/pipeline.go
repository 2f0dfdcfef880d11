package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atikulmunna/strand/internal/config"
	"github.com/atikulmunna/strand/internal/coordinator"
	"github.com/atikulmunna/strand/internal/instance"
	"github.com/atikulmunna/strand/internal/session"
	"github.com/atikulmunna/strand/internal/transport"
)

// pipeline wires one session to the four strategies behind a coordinator.
// Nothing runs until start.
type pipeline struct {
	cfg   config.Config
	sess  *session.Session
	coord *coordinator.Coordinator
}

func newPipeline(ctx context.Context, cfg config.Config) *pipeline {
	id := resolveInstance(ctx, cfg)
	sess := session.New(id, cfg.Kind())
	strategies := transport.NewAll(cfg.TransportConfig(id), sess)

	slog.Info("session ready", "instance", id, "base_url", cfg.BaseURL, "transport", string(cfg.Kind()))
	return &pipeline{
		cfg:   cfg,
		sess:  sess,
		coord: coordinator.New(sess, strategies, cfg.SettleDelay),
	}
}

func (p *pipeline) start() error {
	if err := p.coord.Start(p.cfg.Kind()); err != nil {
		return fmt.Errorf("starting %s: %w", p.cfg.Kind(), err)
	}
	return nil
}

// close stops every strategy, then ends all subscriptions.
func (p *pipeline) close() {
	p.coord.Shutdown()
	p.sess.Close()
}

// resolveInstance returns the configured instance, or asks the server for a
// new one. Creation never fails: a local fallback id is used instead.
func resolveInstance(ctx context.Context, cfg config.Config) string {
	if cfg.Instance != "" {
		return cfg.Instance
	}
	id, err := instance.NewCreator(cfg.BaseURL).Create(ctx)
	if err != nil {
		slog.Warn("instance creation failed, using fallback id", "instance", id, "error", err)
	}
	return id
}
