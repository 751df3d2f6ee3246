// cmd/agcs/config.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/securingskies/agcs/pkg/ingest"
	"github.com/securingskies/agcs/pkg/sitrep"
)

// Command-line options mirror the configuration surface; secrets fall
// back to the environment so they stay out of shell history.
var (
	logLevel = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir   = flag.String("logdir", "logs", "directory for logs, recordings and metrics")

	brokerHost = flag.String("broker", envOr("MQTT_BROKER_IP", "192.168.192.100"), "broker host")
	brokerPort = flag.Int("port", 1883, "broker port")
	brokerTLS  = flag.Bool("tls", false, "connect to the broker over TLS")
	username   = flag.String("username", os.Getenv("MQTT_USERNAME"), "broker username")
	password   = flag.String("password", os.Getenv("MQTT_PASSWORD"), "broker password")

	llmProvider = flag.String("provider", "local", "LLM provider: local, cloud")
	llmModel    = flag.String("model", envOr("OLLAMA_MODEL", "llama3.1"), "model name")
	llmEndpoint = flag.String("endpoint", envOr("OLLAMA_URL", "http://localhost:11434/api/generate"), "local model endpoint")
	apiKey      = flag.String("apikey", os.Getenv("OPENAI_API_KEY"), "cloud provider API key")

	persona    = flag.String("persona", "pilot", "report persona: pilot, commander, analyst")
	personaDir = flag.String("personadir", "config", "directory holding optimized persona prompt files")
	interval   = flag.Int("interval", 45, "seconds between reports (minimum 5)")
	staleSecs  = flag.Int("stale", 90, "seconds of silence before an asset is reported lost")

	criticalBatt = flag.Int("critbatt", 15, "battery percent considered critical")
	warningBatt  = flag.Int("warnbatt", 25, "battery percent considered a warning")
	homeLat      = flag.Float64("homelat", 60.3195, "home base latitude")
	homeLon      = flag.Float64("homelon", 24.8310, "home base longitude")
	homeAlt      = flag.Float64("homealt", 115, "home base altitude, meters MSL")
	traffic      = flag.Bool("traffic", false, "track road traffic classes in vision events")

	record      = flag.Bool("record", false, "record all inbound packets to the black box")
	metrics     = flag.Bool("metrics", false, "score every report to the metrics log")
	bridgeOn    = flag.Bool("bridge", false, "serve the live map feed to browser viewers")
	bridgeAddr  = flag.String("bridgeaddr", ":5000", "listen address for the viewer feed")
	voiceID     = flag.String("voice", "", "speak reports with this synthesis voice")
	hueBridge   = flag.String("hue", "", "Philips Hue bridge URL (http://<ip>/api/<user>)")
	hueLights   = flag.String("huelights", "1,2,3", "comma-separated Hue light ids")
	replayPath  = flag.String("replay", "", "replay this mission log instead of live ingest")
	replaySpeed = flag.Float64("speed", 1.0, "replay speed multiplier")
	jump        = flag.Bool("jump", false, "skip the replay ahead to just before takeoff")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// validateConfig rejects option combinations the pipeline cannot run
// with. Returns the message for exit code 2.
func validateConfig() error {
	if !slices.Contains(sitrep.Names(), *persona) {
		return fmt.Errorf("unknown persona %q", *persona)
	}
	if *interval < 5 {
		return fmt.Errorf("report interval %ds is below the 5s minimum", *interval)
	}
	if *replaySpeed <= 0 {
		return fmt.Errorf("replay speed must be positive, got %g", *replaySpeed)
	}
	if *llmProvider != "local" && *llmProvider != "cloud" {
		return fmt.Errorf("unknown LLM provider %q (want local or cloud)", *llmProvider)
	}
	if *llmProvider == "cloud" && *apiKey == "" {
		return fmt.Errorf("cloud provider selected but no API key given")
	}
	if *replayPath != "" {
		if _, err := os.Stat(*replayPath); err != nil {
			return fmt.Errorf("replay log: %w", err)
		}
	}
	return nil
}

// brokerConfig assembles the broker settings. A replay session targets
// the local broker so recorded traffic does not leak onto the live
// network.
func brokerConfig() ingest.BrokerConfig {
	host := *brokerHost
	if *replayPath != "" && host == "192.168.192.100" {
		host = "127.0.0.1"
	}
	return ingest.BrokerConfig{
		Host:     host,
		Port:     *brokerPort,
		TLS:      *brokerTLS,
		Username: *username,
		Password: *password,
	}
}

func llmClient() sitrep.Client {
	if *llmProvider == "cloud" {
		model := *llmModel
		if model == "" || model == "llama3.1" {
			model = "gpt-4o"
		}
		return sitrep.NewOpenAIClient(*apiKey, model)
	}
	return sitrep.NewOllamaClient(*llmEndpoint, *llmModel)
}

func staleThreshold() time.Duration {
	return time.Duration(*staleSecs) * time.Second
}
