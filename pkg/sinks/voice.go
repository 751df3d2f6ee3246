// pkg/sinks/voice.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sinks

import (
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/securingskies/agcs/pkg/log"
)

var markupPattern = regexp.MustCompile(`\[.*?\]`)

// Sanitize rewrites a report for speech synthesis: markup is stripped
// and in-domain abbreviations become their spoken forms.
func Sanitize(text string) string {
	clean := markupPattern.ReplaceAllString(text, "")
	clean = strings.ReplaceAll(clean, "**", "")

	r := strings.NewReplacer(
		"km/h", "kph",
		"RTK-FIX", "R-T-K Fixed",
		"RTK_FIX", "R-T-K Fixed",
		"RTK_FLOAT", "R-T-K Float",
		"UAV", "Drone",
		"CTRL", "Controller",
		"GCS", "G-C-S",
	)
	return strings.TrimSpace(r.Replace(clean))
}

// Voice speaks reports through an external synthesis command. Failures
// open a breaker so an absent binary does not get retried per report.
type Voice struct {
	VoiceID string
	Rate    int

	breaker *Breaker
	run     func(name string, args ...string) error
	lg      *log.Logger
}

func NewVoice(voiceID string, lg *log.Logger) *Voice {
	return &Voice{
		VoiceID: voiceID,
		Rate:    185,
		breaker: NewBreaker(BreakerCooldown),
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
		lg: lg,
	}
}

// Speak vocalizes one report. Best effort; errors only trip the
// breaker.
func (v *Voice) Speak(text string) {
	if !v.breaker.Allow() {
		return
	}

	args := []string{}
	if v.VoiceID != "" {
		args = append(args, "-v", v.VoiceID)
	}
	args = append(args, "-r", strconv.Itoa(v.Rate), Sanitize(text))

	if err := v.run("say", args...); err != nil {
		v.lg.Warnf("voice synthesis unavailable: %v", err)
		v.breaker.Fail()
	}
}
