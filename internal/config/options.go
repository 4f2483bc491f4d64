// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config holds the playback session options: defaults, YAML file
// and environment loading, validation, partial updates and file watching.
package config

import (
	"time"
)

// OperateButtons toggles the optional control buttons. Only used to derive
// HasControl.
type OperateButtons struct {
	Fullscreen bool `yaml:"fullscreen"`
	Screenshot bool `yaml:"screenshot"`
	Play       bool `yaml:"play"`
	Audio      bool `yaml:"audio"`
	Record     bool `yaml:"record"`
}

// Any reports whether at least one button is enabled.
func (b OperateButtons) Any() bool {
	return b.Fullscreen || b.Screenshot || b.Play || b.Audio || b.Record
}

// Options is the session configuration.
type Options struct {
	URL string `yaml:"url"`
	// Timeout is the watchdog duration in seconds.
	Timeout int `yaml:"timeout"`

	UseHardwareDecode      bool `yaml:"useHardwareDecode"`
	UseBufferedPlayback    bool `yaml:"useBufferedPlayback"`
	ForceNoOffscreenRender bool `yaml:"forceNoOffscreenRender"`

	KeepScreenOn bool `yaml:"keepScreenOn"`
	IsNotMute    bool `yaml:"isNotMute"`
	HasAudio     bool `yaml:"hasAudio"`

	OperateBtns   OperateButtons `yaml:"operateBtns"`
	ShowBandwidth bool           `yaml:"showBandwidth"`
	Text          string         `yaml:"text"`
	LoadingText   string         `yaml:"loadingText"`

	// VideoBuffer is the buffered backend's target depth in milliseconds.
	VideoBuffer int `yaml:"videoBuffer"`

	FFmpegBin   string `yaml:"ffmpegBin"`
	HWDevice    string `yaml:"hwDevice"`
	RecordDir   string `yaml:"recordDir"`
	ControlAddr string `yaml:"controlAddr"`

	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"logLevel"`
}

// Defaults returns the built-in session options.
func Defaults() Options {
	return Options{
		Timeout:                10,
		ForceNoOffscreenRender: true,
		HasAudio:               true,
		VideoBuffer:            1000,
		FFmpegBin:              "ffmpeg",
		HWDevice:               "/dev/dri/renderD128",
		RecordDir:              ".",
		ControlAddr:            "127.0.0.1:8089",
		LogLevel:               "info",
	}
}

// TimeoutDuration returns Timeout as a duration.
func (o Options) TimeoutDuration() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}

// VideoBufferDuration returns VideoBuffer as a duration.
func (o Options) VideoBufferDuration() time.Duration {
	return time.Duration(o.VideoBuffer) * time.Millisecond
}

// HasControl reports whether any control surface element is configured.
func (o Options) HasControl() bool {
	return o.ShowBandwidth || o.Text != "" || o.OperateBtns.Any()
}

// EffectiveLogLevel returns the log level, forced to debug when Debug is set.
func (o Options) EffectiveLogLevel() string {
	if o.Debug {
		return "debug"
	}
	return o.LogLevel
}
