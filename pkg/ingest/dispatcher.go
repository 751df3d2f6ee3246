// pkg/ingest/dispatcher.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package ingest connects the pub/sub bus to the fleet table: it
// subscribes the telemetry topic families, records every inbound
// packet, and applies the per-vendor decoders.
package ingest

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/securingskies/agcs/pkg/log"
	"github.com/securingskies/agcs/pkg/telemetry"
)

// Subscriptions are the six telemetry topics, QoS 0.
var Subscriptions = []string{
	"owntracks/#",
	"dronetag/#",
	"thing/product/+/osd",
	"thing/product/+/events",
	"thing/product/+/state",
	"thing/product/sn",
}

// Dispatcher routes broker messages through the decoders into the
// fleet table. It is the only component that mutates the table.
type Dispatcher struct {
	fleet    *telemetry.Fleet
	decoders telemetry.Decoders
	recorder *Recorder // nil when recording is disabled
	lg       *log.Logger
}

func NewDispatcher(fleet *telemetry.Fleet, decoders telemetry.Decoders, recorder *Recorder, lg *log.Logger) *Dispatcher {
	return &Dispatcher{
		fleet:    fleet,
		decoders: decoders,
		recorder: recorder,
		lg:       lg,
	}
}

// HandleMessage processes one raw packet: black box first, so that
// even un-decodable packets are preserved, then decode and merge. The
// callback path never blocks on the network and never panics out.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.lg.Errorf("%s: panic handling message: %v", topic, r)
		}
	}()

	if d.recorder != nil {
		d.recorder.Record(topic, payload)
	}

	updates, visual := d.decoders.Decode(topic, payload)
	for _, u := range updates {
		d.fleet.ApplyUpdate(u)
	}
	if visual != nil {
		if !d.fleet.AttachVisual(*visual) {
			d.lg.Debugf("%s: visual event with no airborne asset, dropped", topic)
		}
	}
}

// Run connects to the broker, subscribes the topic families and blocks
// until ctx is cancelled. Reconnects are handled by the client; each
// connection transition is logged once.
func (d *Dispatcher) Run(ctx context.Context, cfg BrokerConfig) error {
	opts := cfg.ClientOptions("agcs-ingest")
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		d.lg.Infof("link established: %s:%d", cfg.Host, cfg.Port)
		for _, topic := range Subscriptions {
			if token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
				d.HandleMessage(msg.Topic(), msg.Payload())
			}); token.Wait() && token.Error() != nil {
				d.lg.Errorf("%s: subscribe failed: %v", topic, token.Error())
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		d.lg.Warnf("link lost: %v", err)
	})

	client, err := Connect(opts)
	if err != nil {
		return fmt.Errorf("broker %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	<-ctx.Done()
	client.Disconnect(250)
	return ctx.Err()
}
