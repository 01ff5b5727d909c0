// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package bridge owns every part of the serial bridge. A Bridge is built
// once and its parts are wired to each other by reference; nothing is kept
// in package state.
package bridge

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ezrec/serialbridge/client"
	"github.com/ezrec/serialbridge/config"
	"github.com/ezrec/serialbridge/coordinator"
	"github.com/ezrec/serialbridge/device"
	"github.com/ezrec/serialbridge/gateway"
	"github.com/ezrec/serialbridge/relay"
	"github.com/ezrec/serialbridge/script"
	"github.com/ezrec/serialbridge/transport"
)

// IN_PROCESS_URL is the base URL the in-process client uses. It never
// resolves; requests are served by the gateway's round tripper.
const IN_PROCESS_URL = "http://serialbridge.invalid"

// Bridge is the explicit bridge object.
type Bridge struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry

	Owner   *transport.Owner
	Agent   *relay.Agent
	Gateway *gateway.Gateway
	Server  *gateway.Server
	Loop    *coordinator.Loop

	// Device is the simulated device when the configuration asks for
	// one and no opener was given.
	Device *device.Device
}

// New builds a bridge. With a nil opener the device is simulated or the
// configured serial port, as cfg says. A nil logger uses zap.L().
func New(cfg *config.Config, opener transport.Opener, logger *zap.Logger) (b *Bridge, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	err = cfg.Validate()
	if err != nil {
		return
	}

	policy, err := gateway.ParsePolicy(cfg.Gateway.Policy)
	if err != nil {
		return
	}

	if logger == nil {
		logger = zap.L()
	}

	b = &Bridge{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	b.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if opener == nil {
		if cfg.Simulate {
			b.Device = device.New(cfg.Device.Capacity)
			opener = b.Device.Opener()
		} else {
			sc := transport.SerialConfig{Port: cfg.Serial.Port, Baud: cfg.Serial.Baud}
			err = sc.Validate()
			if err != nil {
				return nil, err
			}
			opener = transport.SerialOpener(sc)
		}
	}

	b.Owner = transport.NewOwner(opener)
	b.Owner.Logger = logger.Named("transport")

	b.Agent = relay.NewAgent(cfg.Relay.Interval)
	b.Agent.Logger = logger.Named("relay")

	b.Gateway = gateway.New(policy, b.Agent)
	b.Gateway.Metrics = gateway.NewMetrics(b.Registry)
	b.Gateway.Logger = logger.Named("gateway")

	b.Server = gateway.NewServer(b.Gateway, cfg.Gateway.RequestTimeout, b.Registry)

	b.Loop = &coordinator.Loop{
		Transport: b.Owner,
		Relay:     b.Agent,
		Gateway:   b.Gateway,
		Interval:  cfg.Coordinator.Interval,
		Metrics:   coordinator.NewMetrics(b.Registry),
		Logger:    logger.Named("coordinator"),
	}

	return
}

// Open opens the device. Requests parked before Open are serviced once it
// succeeds.
func (b *Bridge) Open(ctx context.Context) (err error) {
	return b.Owner.Open(ctx)
}

// Run drives the relay agent, the coordinating loop, and the listener if
// one is configured, until ctx is done or one of them fails. A bridge runs
// once.
func (b *Bridge) Run(ctx context.Context) (err error) {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return b.Agent.Run(ctx) })
	group.Go(func() error { return b.Loop.Run(ctx) })

	if listen := b.Config.Gateway.Listen; listen != "" {
		group.Go(func() error { return b.Server.Serve(ctx, listen) })
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	return
}

// Client returns a synchronous caller served in-process.
func (b *Bridge) Client() (cl *client.Client) {
	cl = client.New(&http.Client{Transport: b.Server.RoundTripper()}, IN_PROCESS_URL)
	cl.ChunkSize = b.Config.Serial.ChunkSize
	cl.Logger = b.Logger.Named("client")
	return
}

// Runtime returns a script runtime driving a fresh in-process client.
func (b *Bridge) Runtime() (rt *script.Runtime) {
	rt = script.New(b.Client())
	rt.Logger = b.Logger.Named("script")
	return
}

// Close releases the device.
func (b *Bridge) Close() (err error) {
	return b.Owner.Close()
}
