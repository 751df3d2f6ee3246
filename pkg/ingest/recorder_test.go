// pkg/ingest/recorder_test.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package ingest

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securingskies/agcs/pkg/log"
)

func readLines(t *testing.T, path string) []forensicRecord {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []forensicRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec forensicRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	return records
}

func TestRecorderWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, log.NewDiscard())
	require.True(t, r.Enabled())
	assert.True(t, strings.HasPrefix(r.Path(), dir))
	assert.True(t, strings.HasSuffix(r.Path(), ".jsonl"))

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.Record("thing/product/AAAA1234/osd", []byte(`{"data": {"height": 10}}`))
	r.now = func() time.Time { return base.Add(1500 * time.Millisecond) }
	r.Record("owntracks/u/p", []byte(`{"_type": "location"}`))
	r.Close()

	records := readLines(t, r.Path())
	require.Len(t, records, 2)
	assert.Equal(t, "thing/product/AAAA1234/osd", records[0].Topic)
	assert.JSONEq(t, `{"data": {"height": 10}}`, string(records[0].Data))
	assert.InDelta(t, 1.5, records[1].TS-records[0].TS, 1e-9)
}

func TestRecorderPreservesNonJSON(t *testing.T) {
	r := NewRecorder(t.TempDir(), log.NewDiscard())
	r.Record("dronetag/feed", []byte("not json at all"))
	r.Close()

	records := readLines(t, r.Path())
	require.Len(t, records, 1)

	var s string
	require.NoError(t, json.Unmarshal(records[0].Data, &s))
	assert.Equal(t, "not json at all", s)
}

func TestRecorderDisabledOnOpenFailure(t *testing.T) {
	// A file where the directory should be makes MkdirAll fail.
	dir := t.TempDir()
	blocked := dir + "/blocked"
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))

	r := NewRecorder(blocked, log.NewDiscard())
	assert.False(t, r.Enabled())
	assert.Empty(t, r.Path())

	// Recording and closing a disabled recorder is a no-op, not a crash.
	r.Record("topic", []byte(`{}`))
	r.Close()
	r.Close()
}
