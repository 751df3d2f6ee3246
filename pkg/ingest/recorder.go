// pkg/ingest/recorder.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/securingskies/agcs/pkg/log"
)

// Recorder is the black box: an append-only JSONL log of every inbound
// packet, written before any decoding so that even packets the decoders
// reject are preserved for forensics.
//
// A recorder that failed to open its file stays usable and drops
// everything; a write error on one line never aborts the mission.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	path string
	now  func() time.Time
	lg   *log.Logger
}

type forensicRecord struct {
	TS    float64         `json:"ts"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// NewRecorder opens mission_<YYYYMMDD_HHMMSS>.jsonl under dir. Open
// failures disable the recorder silently apart from one log line.
func NewRecorder(dir string, lg *log.Logger) *Recorder {
	r := &Recorder{now: time.Now, lg: lg}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		lg.Errorf("%s: unable to create recording directory: %v", dir, err)
		return r
	}

	r.path = filepath.Join(dir, "mission_"+time.Now().Format("20060102_150405")+".jsonl")
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		lg.Errorf("%s: unable to open black box: %v", r.path, err)
		r.path = ""
		return r
	}
	r.file = f

	lg.Infof("black box recording to %s", r.path)
	return r
}

// Enabled reports whether the session file was opened successfully.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// Path returns the session file path, or "" when disabled.
func (r *Recorder) Path() string { return r.path }

// Record appends one packet. Payloads that are not valid JSON are
// preserved as a JSON string so nothing is lost.
func (r *Recorder) Record(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return
	}

	data := json.RawMessage(payload)
	if !json.Valid(payload) {
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return
		}
		data = quoted
	}

	line, err := json.Marshal(forensicRecord{
		TS:    float64(r.now().UnixNano()) / 1e9,
		Topic: topic,
		Data:  data,
	})
	if err != nil {
		return
	}

	if _, err := r.file.Write(append(line, '\n')); err != nil {
		// Never crash the mission for a log error.
		r.lg.Debugf("%s: black box write failed: %v", r.path, err)
	}
}

// Close flushes and closes the session file. Safe to call twice.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		r.file.Sync()
		r.file.Close()
		r.file = nil
	}
}
