// cmd/agcs/main.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// Initializes the platform and supervises its tasks: ingest
// dispatcher, report engine, optional bridge and replay. Runs until a
// shutdown signal arrives.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/securingskies/agcs/pkg/bridge"
	"github.com/securingskies/agcs/pkg/ingest"
	"github.com/securingskies/agcs/pkg/log"
	"github.com/securingskies/agcs/pkg/replay"
	"github.com/securingskies/agcs/pkg/sinks"
	"github.com/securingskies/agcs/pkg/sitrep"
	"github.com/securingskies/agcs/pkg/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if err := validateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}

	lg := log.New(*logLevel, *logDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pers, err := sitrep.LoadPersona(*personaDir, *persona, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}

	fleet := telemetry.NewFleet()
	decoders := telemetry.Decoders{Autel: telemetry.AutelDecoder{Traffic: *traffic}}

	var recorder *ingest.Recorder
	if *record {
		recorder = ingest.NewRecorder(*logDir, lg)
		defer recorder.Close()
	}

	var auditor *sitrep.Auditor
	if *metrics {
		auditor = sitrep.NewAuditor(*logDir, lg)
		defer auditor.Close()
	}

	client := llmClient()
	lg.Infof("intelligence: %s via %s provider", client.Model(), *llmProvider)
	lg.Infof("persona: %s, reports every %ds", pers.Name, *interval)

	engine := sitrep.NewEngine(fleet, client, pers, auditor, sitrep.Config{
		Interval:       time.Duration(*interval) * time.Second,
		StaleThreshold: staleThreshold(),
		HomeLat:        *homeLat,
		HomeLon:        *homeLon,
		HomeAltM:       *homeAlt,
	}, lg)
	attachSinks(engine, fleet, lg)

	cfg := brokerConfig()
	dispatcher := ingest.NewDispatcher(fleet, decoders, recorder, lg)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return dispatcher.Run(gctx, cfg) })
	group.Go(func() error { return engine.Run(gctx) })

	if *bridgeOn {
		hub := bridge.NewHub(lg)
		group.Go(func() error { return hub.Run(gctx, cfg, *bridgeAddr) })
	}

	if *replayPath != "" {
		session := replay.NewSession(*replayPath, *replaySpeed, *jump, lg)
		group.Go(func() error {
			// The replay feeds the same broker the dispatcher reads;
			// its end is not the platform's end.
			if err := session.Run(gctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
				lg.Errorf("replay: %v", err)
			}
			return nil
		})
	}

	err = group.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		lg.Info("mission end, shutdown complete")
		return 0
	}
	lg.Errorf("fatal: %v", err)
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	return 1
}

// attachSinks wires the auxiliary outputs the flags ask for: console
// always, then voice and mood lighting.
func attachSinks(engine *sitrep.Engine, fleet *telemetry.Fleet, lg *log.Logger) {
	engine.AddSink(func(text string) {
		fmt.Printf("\n--- SITREP %s ---\n%s\n", time.Now().Format("15:04:05"), text)
	})

	if *voiceID != "" {
		voice := sinks.NewVoice(*voiceID, lg)
		engine.AddSink(voice.Speak)
	}

	if *hueBridge != "" {
		lights := strings.Split(*hueLights, ",")
		lighting := sinks.NewLighting(*hueBridge, lights, lg)
		stale := staleThreshold()
		engine.AddSink(func(string) {
			now := time.Now()
			lighting.Apply(sinks.MoodFor(fleet.Snapshot(), now, stale, *criticalBatt, *warningBatt))
		})
	}
}
