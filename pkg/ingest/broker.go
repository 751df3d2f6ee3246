// pkg/ingest/broker.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package ingest

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// ConnectTimeout bounds the initial broker handshake.
	ConnectTimeout = 60 * time.Second
	// KeepAlive is the MQTT socket keep-alive interval.
	KeepAlive = 60 * time.Second
)

var ErrConnectTimeout = errors.New("broker connect timed out")

// BrokerConfig describes how to reach the pub/sub bus. The same
// settings serve the live dispatcher, the replay publisher and the
// viewer bridge.
type BrokerConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
}

// ClientOptions builds paho options with the platform's timeouts and
// reconnect behavior baked in.
func (c BrokerConfig) ClientOptions(clientID string) *mqtt.ClientOptions {
	scheme := "tcp"
	port := c.Port
	if c.TLS {
		scheme = "ssl"
		if port == 1883 {
			port = 8883
		}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, c.Host, port)).
		SetClientID(clientID).
		SetConnectTimeout(ConnectTimeout).
		SetKeepAlive(KeepAlive).
		SetAutoReconnect(true).
		SetOrderMatters(true)

	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	if c.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// Connect dials the broker and waits for the handshake.
func Connect(opts *mqtt.ClientOptions) (mqtt.Client, error) {
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(ConnectTimeout) {
		return nil, ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}
