// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package demux splits an MPEG-TS byte stream into audio and video frames.
package demux

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/rs/zerolog"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
)

// ErrDestroyed is returned by Write after Destroy.
var ErrDestroyed = errors.New("demux: destroyed")

// Codec names carried on media.Frame.
const (
	CodecH264 = "h264"
	CodecH265 = "h265"
	CodecAAC  = "aac"
	CodecAC3  = "ac3"
	CodecMP3  = "mp3"
	CodecOpus = "opus"
)

const (
	defaultSR = 48000
	ticksPerS = 90000
)

// Demuxer reads MPEG-TS from its Write side on a goroutine and hands every
// access unit to a FrameSink. The sink must not block for long.
type Demuxer struct {
	sink    media.FrameSink
	onBytes func(media.Kind, int)
	logger  zerolog.Logger

	writeMu sync.Mutex
	pr      *io.PipeReader
	pw      *io.PipeWriter

	reader *mpegts.Reader
	tracks []Track
	// per-track audio frame duration in 90 kHz ticks
	frameDur map[uint16]int64

	mu       sync.Mutex
	err      error
	ready    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Track describes one elementary stream found in the PMT.
type Track struct {
	PID   uint16
	Kind  media.Kind
	Codec string
}

// New starts a demuxer. onBytes, if set, receives the payload size of
// every emitted frame.
func New(sink media.FrameSink, onBytes func(media.Kind, int)) *Demuxer {
	pr, pw := io.Pipe()
	d := &Demuxer{
		sink:     sink,
		onBytes:  onBytes,
		logger:   log.WithComponent("demux"),
		pr:       pr,
		pw:       pw,
		frameDur: make(map[uint16]int64),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Write feeds stream bytes. It blocks until the reader has consumed p.
func (d *Demuxer) Write(p []byte) (int, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	n, err := d.pw.Write(p)
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			if derr := d.Err(); derr != nil {
				return n, derr
			}
			return n, ErrDestroyed
		}
		return n, fmt.Errorf("demux: write: %w", err)
	}
	return n, nil
}

// Ready is closed once the PMT has been parsed or the reader gave up.
func (d *Demuxer) Ready() <-chan struct{} { return d.ready }

// Tracks returns the tracks found in the PMT. Valid after Ready.
func (d *Demuxer) Tracks() []Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Track(nil), d.tracks...)
}

// Err returns the error that stopped the reader, if any.
func (d *Demuxer) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Destroy stops the reader and waits for it. Safe to call more than once.
func (d *Demuxer) Destroy() error {
	d.stopOnce.Do(func() {
		_ = d.pw.CloseWithError(ErrDestroyed)
	})
	<-d.done
	return nil
}

func (d *Demuxer) fail(err error) {
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.mu.Unlock()
}

func (d *Demuxer) run() {
	readyClosed := false
	defer func() {
		_ = d.pr.CloseWithError(ErrDestroyed)
		if !readyClosed {
			close(d.ready)
		}
		close(d.done)
	}()

	d.reader = &mpegts.Reader{R: d.pr}
	if err := d.reader.Initialize(); err != nil {
		if !stopped(err) {
			d.fail(fmt.Errorf("demux: initialize: %w", err))
			d.logger.Warn().Err(err).Str(log.FieldEvent, "demux.init_failed").Msg("mpeg-ts initialization failed")
		}
		return
	}

	for _, track := range d.reader.Tracks() {
		d.attach(track)
	}
	d.reader.OnDecodeError(func(err error) {
		d.logger.Debug().Err(err).Str(log.FieldEvent, "demux.decode_error").Msg("mpeg-ts decode error")
	})
	close(d.ready)
	readyClosed = true

	for {
		if err := d.reader.Read(); err != nil {
			if stopped(err) {
				d.logger.Debug().Str(log.FieldEvent, "demux.stopped").Msg("mpeg-ts stream ended")
				return
			}
			d.fail(fmt.Errorf("demux: read: %w", err))
			d.logger.Warn().Err(err).Str(log.FieldEvent, "demux.read_failed").Msg("mpeg-ts read failed")
			return
		}
	}
}

func stopped(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, ErrDestroyed)
}

func (d *Demuxer) attach(track *mpegts.Track) {
	pid := track.PID
	add := func(kind media.Kind, codec string) {
		d.mu.Lock()
		d.tracks = append(d.tracks, Track{PID: pid, Kind: kind, Codec: codec})
		d.mu.Unlock()
		d.logger.Debug().
			Uint16(log.FieldTrackPID, pid).
			Str(log.FieldCodec, codec).
			Msg("track found")
	}

	switch c := track.Codec.(type) {
	case *mpegts.CodecH264:
		add(media.KindVideo, CodecH264)
		d.reader.OnDataH264(track, func(pts, dts int64, au [][]byte) error {
			d.video(CodecH264, pts, dts, au, h264.IsRandomAccess(au))
			return nil
		})

	case *mpegts.CodecH265:
		add(media.KindVideo, CodecH265)
		d.reader.OnDataH265(track, func(pts, dts int64, au [][]byte) error {
			d.video(CodecH265, pts, dts, au, h265.IsRandomAccess(au))
			return nil
		})

	case *mpegts.CodecMPEG4Audio:
		add(media.KindAudio, CodecAAC)
		d.frameDur[pid] = frameTicks(1024, c.Config.SampleRate)
		d.reader.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) error {
			d.audio(CodecAAC, pid, pts, aus)
			return nil
		})

	case *mpegts.CodecAC3:
		add(media.KindAudio, CodecAC3)
		d.reader.OnDataAC3(track, func(pts int64, frame []byte) error {
			d.audio(CodecAC3, pid, pts, [][]byte{frame})
			return nil
		})

	case *mpegts.CodecMPEG1Audio:
		add(media.KindAudio, CodecMP3)
		d.frameDur[pid] = frameTicks(1152, defaultSR)
		d.reader.OnDataMPEG1Audio(track, func(pts int64, frames [][]byte) error {
			d.audio(CodecMP3, pid, pts, frames)
			return nil
		})

	case *mpegts.CodecOpus:
		add(media.KindAudio, CodecOpus)
		d.frameDur[pid] = frameTicks(960, defaultSR)
		d.reader.OnDataOpus(track, func(pts int64, packets [][]byte) error {
			d.audio(CodecOpus, pid, pts, packets)
			return nil
		})

	default:
		d.logger.Debug().
			Uint16(log.FieldTrackPID, pid).
			Str(log.FieldCodec, fmt.Sprintf("%T", track.Codec)).
			Msg("unsupported track ignored")
	}
}

func frameTicks(samples, sampleRate int) int64 {
	if sampleRate <= 0 {
		sampleRate = defaultSR
	}
	return int64(samples) * ticksPerS / int64(sampleRate)
}

func (d *Demuxer) video(codec string, pts, dts int64, au [][]byte, key bool) {
	if len(au) == 0 {
		return
	}
	data, err := h264.AnnexB(au).Marshal()
	if err != nil || len(data) == 0 {
		return
	}
	d.emit(media.Frame{
		Kind:     media.KindVideo,
		Codec:    codec,
		PTS:      media.PTSFromTicks(pts),
		DTS:      media.PTSFromTicks(dts),
		Keyframe: key,
		Data:     data,
	})
}

// audio emits one frame per unit, spacing PTS by the codec frame duration.
func (d *Demuxer) audio(codec string, pid uint16, pts int64, units [][]byte) {
	step := d.frameDur[pid]
	for _, u := range units {
		if len(u) == 0 {
			continue
		}
		p := media.PTSFromTicks(pts)
		d.emit(media.Frame{Kind: media.KindAudio, Codec: codec, PTS: p, DTS: p, Data: u})
		pts += step
	}
}

func (d *Demuxer) emit(f media.Frame) {
	if d.onBytes != nil {
		d.onBytes(f.Kind, len(f.Data))
	}
	d.sink.WriteFrame(f)
}
