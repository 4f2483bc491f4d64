// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIVEPLAY_"

// Loader handles option loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	// ConsumedEnvKeys records every environment key consulted by Load.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path (may be empty).
func (l *Loader) Path() string { return l.configPath }

// Load builds the options: defaults, then the YAML file, then environment,
// then validation.
func (l *Loader) Load() (Options, error) {
	opts := Defaults()

	if l.configPath != "" {
		p, err := LoadFile(l.configPath)
		if err != nil {
			return opts, fmt.Errorf("load config file: %w", err)
		}
		opts = opts.Apply(p)
	}

	opts = opts.Apply(l.envPatch())

	if err := Validate(opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// LoadFile strictly decodes a YAML options file into a Patch, so that only
// keys present in the file override lower layers.
func LoadFile(path string) (Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patch{}, err
	}
	return ParsePatch(data)
}

// ParsePatch decodes YAML. Unknown keys are rejected.
func ParsePatch(data []byte) (Patch, error) {
	var p Patch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Patch{}, nil
		}
		return Patch{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return p, nil
}

func (l *Loader) envPatch() Patch {
	var p Patch
	envString(l, &p.URL, "URL")
	envInt(l, &p.Timeout, "TIMEOUT")
	envBool(l, &p.UseHardwareDecode, "USE_HARDWARE_DECODE")
	envBool(l, &p.UseBufferedPlayback, "USE_BUFFERED_PLAYBACK")
	envBool(l, &p.ForceNoOffscreenRender, "FORCE_NO_OFFSCREEN_RENDER")
	envBool(l, &p.KeepScreenOn, "KEEP_SCREEN_ON")
	envBool(l, &p.IsNotMute, "IS_NOT_MUTE")
	envBool(l, &p.HasAudio, "HAS_AUDIO")
	envBool(l, &p.ShowBandwidth, "SHOW_BANDWIDTH")
	envString(l, &p.Text, "TEXT")
	envInt(l, &p.VideoBuffer, "VIDEO_BUFFER")
	envString(l, &p.FFmpegBin, "FFMPEG_BIN")
	envString(l, &p.HWDevice, "HW_DEVICE")
	envString(l, &p.RecordDir, "RECORD_DIR")
	envString(l, &p.ControlAddr, "CONTROL_ADDR")
	envBool(l, &p.Debug, "DEBUG")
	envString(l, &p.LogLevel, "LOG_LEVEL")
	return p
}

func (l *Loader) consume(suffix string) (string, bool) {
	key := EnvPrefix + suffix
	l.ConsumedEnvKeys[key] = struct{}{}
	v, ok := os.LookupEnv(key)
	return key, ok && v != ""
}

func envString(l *Loader, dst **string, suffix string) {
	if key, ok := l.consume(suffix); ok {
		*dst = Ptr(ParseString(key, ""))
	}
}

func envInt(l *Loader, dst **int, suffix string) {
	if key, ok := l.consume(suffix); ok {
		*dst = Ptr(ParseInt(key, 0))
	}
}

func envBool(l *Loader, dst **bool, suffix string) {
	if key, ok := l.consume(suffix); ok {
		*dst = Ptr(ParseBool(key, false))
	}
}
