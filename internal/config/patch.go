// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// Patch is a partial Options update. Nil fields are left untouched.
type Patch struct {
	URL     *string `yaml:"url"`
	Timeout *int    `yaml:"timeout"`

	UseHardwareDecode      *bool `yaml:"useHardwareDecode"`
	UseBufferedPlayback    *bool `yaml:"useBufferedPlayback"`
	ForceNoOffscreenRender *bool `yaml:"forceNoOffscreenRender"`

	KeepScreenOn *bool `yaml:"keepScreenOn"`
	IsNotMute    *bool `yaml:"isNotMute"`
	HasAudio     *bool `yaml:"hasAudio"`

	OperateBtns   *OperateButtons `yaml:"operateBtns"`
	ShowBandwidth *bool           `yaml:"showBandwidth"`
	Text          *string         `yaml:"text"`
	LoadingText   *string         `yaml:"loadingText"`

	VideoBuffer *int `yaml:"videoBuffer"`

	FFmpegBin   *string `yaml:"ffmpegBin"`
	HWDevice    *string `yaml:"hwDevice"`
	RecordDir   *string `yaml:"recordDir"`
	ControlAddr *string `yaml:"controlAddr"`

	Debug    *bool   `yaml:"debug"`
	LogLevel *string `yaml:"logLevel"`
}

// Apply returns a copy of o with every non-nil field of p written over it.
// Nested values such as OperateBtns are replaced as a whole, not merged.
func (o Options) Apply(p Patch) Options {
	set(&o.URL, p.URL)
	set(&o.Timeout, p.Timeout)
	set(&o.UseHardwareDecode, p.UseHardwareDecode)
	set(&o.UseBufferedPlayback, p.UseBufferedPlayback)
	set(&o.ForceNoOffscreenRender, p.ForceNoOffscreenRender)
	set(&o.KeepScreenOn, p.KeepScreenOn)
	set(&o.IsNotMute, p.IsNotMute)
	set(&o.HasAudio, p.HasAudio)
	set(&o.OperateBtns, p.OperateBtns)
	set(&o.ShowBandwidth, p.ShowBandwidth)
	set(&o.Text, p.Text)
	set(&o.LoadingText, p.LoadingText)
	set(&o.VideoBuffer, p.VideoBuffer)
	set(&o.FFmpegBin, p.FFmpegBin)
	set(&o.HWDevice, p.HWDevice)
	set(&o.RecordDir, p.RecordDir)
	set(&o.ControlAddr, p.ControlAddr)
	set(&o.Debug, p.Debug)
	set(&o.LogLevel, p.LogLevel)
	return o
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Diff returns the patch that turns o into n. Only changed fields are set.
func Diff(o, n Options) Patch {
	var p Patch
	diff(&p.URL, o.URL, n.URL)
	diff(&p.Timeout, o.Timeout, n.Timeout)
	diff(&p.UseHardwareDecode, o.UseHardwareDecode, n.UseHardwareDecode)
	diff(&p.UseBufferedPlayback, o.UseBufferedPlayback, n.UseBufferedPlayback)
	diff(&p.ForceNoOffscreenRender, o.ForceNoOffscreenRender, n.ForceNoOffscreenRender)
	diff(&p.KeepScreenOn, o.KeepScreenOn, n.KeepScreenOn)
	diff(&p.IsNotMute, o.IsNotMute, n.IsNotMute)
	diff(&p.HasAudio, o.HasAudio, n.HasAudio)
	diff(&p.OperateBtns, o.OperateBtns, n.OperateBtns)
	diff(&p.ShowBandwidth, o.ShowBandwidth, n.ShowBandwidth)
	diff(&p.Text, o.Text, n.Text)
	diff(&p.LoadingText, o.LoadingText, n.LoadingText)
	diff(&p.VideoBuffer, o.VideoBuffer, n.VideoBuffer)
	diff(&p.FFmpegBin, o.FFmpegBin, n.FFmpegBin)
	diff(&p.HWDevice, o.HWDevice, n.HWDevice)
	diff(&p.RecordDir, o.RecordDir, n.RecordDir)
	diff(&p.ControlAddr, o.ControlAddr, n.ControlAddr)
	diff(&p.Debug, o.Debug, n.Debug)
	diff(&p.LogLevel, o.LogLevel, n.LogLevel)
	return p
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T { return &v }

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func diff[T comparable](dst **T, old, cur T) {
	if old != cur {
		v := cur
		*dst = &v
	}
}
