// pkg/replay/replay.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package replay re-injects recorded mission logs into the broker at a
// controlled time rate, preserving inter-packet spacing so the rest of
// the platform cannot tell a replay from live traffic.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/securingskies/agcs/pkg/ingest"
	"github.com/securingskies/agcs/pkg/log"
)

// preRoll is how far before the first vendor-UAV packet a jumped
// replay starts, so the tactical picture has context before takeoff.
const preRoll = 5 * time.Second

// progressEvery throttles the playback heartbeat log.
const progressEvery = 50

// Publish delivers one replayed packet to the broker.
type Publish func(topic string, payload []byte)

// Session replays one mission log. Speed scales the timeline: 2.0
// plays twice as fast. Jump skips ahead to just before the first
// vendor-UAV packet.
type Session struct {
	Path  string
	Speed float64
	Jump  bool

	lg    *log.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewSession(path string, speed float64, jump bool, lg *log.Logger) *Session {
	if speed <= 0 {
		speed = 1.0
	}
	return &Session{
		Path:  path,
		Speed: speed,
		Jump:  jump,
		lg:    lg,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type logRecord struct {
	TS    float64         `json:"ts"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Run connects to the broker and plays the session to completion.
func (s *Session) Run(ctx context.Context, cfg ingest.BrokerConfig) error {
	client, err := ingest.Connect(cfg.ClientOptions("agcs-replay"))
	if err != nil {
		return fmt.Errorf("broker %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	defer client.Disconnect(250)

	return s.Play(ctx, func(topic string, payload []byte) {
		client.Publish(topic, 0, false, payload)
	})
}

// Play streams the log through publish with drift-corrected pacing:
// each wait is computed from total elapsed log time against total
// elapsed wall time, so a slow publish shortens later waits instead of
// stretching the whole timeline. Malformed lines are skipped.
func (s *Session) Play(ctx context.Context, publish Publish) error {
	skipUntil, err := s.scanStart()
	if err != nil {
		return err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	s.lg.Infof("replay started: %s at %.1fx", s.Path, s.Speed)

	var (
		logT0   float64
		wallT0  time.Time
		started bool
		count   int
	)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var rec logRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil || rec.Topic == "" {
			continue
		}
		if skipUntil > 0 && rec.TS < skipUntil {
			continue
		}

		if !started {
			logT0 = rec.TS
			wallT0 = s.now()
			started = true
			s.lg.Info("replay timeline synced")
		}

		logElapsed := rec.TS - logT0
		wallElapsed := s.now().Sub(wallT0).Seconds() * s.Speed
		if wait := (logElapsed - wallElapsed) / s.Speed; wait > 0 {
			if err := s.sleep(ctx, time.Duration(wait*float64(time.Second))); err != nil {
				return err
			}
		}

		publish(rec.Topic, payloadBytes(rec.Data))
		count++
		if count%progressEvery == 0 {
			s.lg.Debugf("replayed %d packets, log time +%.1fs", count, logElapsed)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	s.lg.Infof("replay finished: %d packets", count)
	return nil
}

// scanStart pre-scans the log for the first vendor-UAV packet when
// jumping. Falls back to the start of the file if none is found.
func (s *Session) scanStart() (float64, error) {
	if !s.Jump {
		return 0, nil
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec logRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if strings.HasPrefix(rec.Topic, "thing/product") {
			s.lg.Infof("jump: vendor UAV active at t=%.2f, starting %.0fs earlier", rec.TS, preRoll.Seconds())
			return rec.TS - preRoll.Seconds(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}

	s.lg.Warn("jump: no vendor UAV packet found, starting from beginning")
	return 0, nil
}

// payloadBytes restores the wire form of a recorded payload. The
// recorder wraps non-JSON packets in a JSON string; those are
// unwrapped back to their raw bytes.
func payloadBytes(data json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return []byte(s)
		}
	}
	return trimmed
}
