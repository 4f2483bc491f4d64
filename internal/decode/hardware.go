// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package decode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/player"
	"github.com/ManuGH/liveplay/internal/procgroup"
)

// ErrNoDecoder is returned when the ffmpeg binary cannot be found.
var ErrNoDecoder = errors.New("decode: ffmpeg not available")

const (
	stopGrace = 2 * time.Second
	// maxPending bounds the frames written to ffmpeg but not yet reported
	// as decoded.
	maxPending = 120
)

// CommandFunc builds the decoder process.
type CommandFunc func(name string, args ...string) *exec.Cmd

// HardwareOption configures a Hardware backend.
type HardwareOption func(*Hardware)

// WithCommand replaces exec.Command, mainly for tests.
func WithCommand(fn CommandFunc) HardwareOption {
	return func(h *Hardware) { h.command = fn }
}

// Hardware decodes video in an ffmpeg process using VAAPI. Annex-B access
// units go in on stdin starting at the first keyframe; every frame ffmpeg
// reports on its -progress pipe is rendered and ticked.
type Hardware struct {
	env     player.BackendEnv
	logger  zerolog.Logger
	bin     string
	device  string
	command CommandFunc

	frames chan media.Frame
	ready  chan struct{}
	life   lifecycle
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending []media.Frame
	decoded int64
}

// NewHardware validates the ffmpeg binary and starts the backend. The
// process itself starts on the first video keyframe, once the codec is known.
func NewHardware(env player.BackendEnv, opts ...HardwareOption) (*Hardware, error) {
	h := &Hardware{
		env:     env,
		logger:  log.WithComponent("decode").With().Str(log.FieldBackend, player.BackendHardware.String()).Logger(),
		bin:     env.Options.FFmpegBin,
		device:  env.Options.HWDevice,
		command: exec.Command,
		frames:  make(chan media.Frame, queueSize),
		ready:   make(chan struct{}),
		life:    newLifecycle(),
	}
	for _, o := range opts {
		o(h)
	}
	if h.bin == "" {
		h.bin = "ffmpeg"
	}
	if _, err := exec.LookPath(h.bin); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDecoder, err)
	}
	go h.run()
	close(h.ready)
	return h, nil
}

func (h *Hardware) Kind() player.BackendKind { return player.BackendHardware }

func (h *Hardware) Ready() <-chan struct{} { return h.ready }

// WriteFrame queues a video frame for the decoder. Audio is ignored.
func (h *Hardware) WriteFrame(f media.Frame) {
	if f.Kind != media.KindVideo || h.life.stopped() {
		return
	}
	enqueue(h.frames, f, player.BackendHardware)
}

// Destroy closes the decoder input, stops the process group and waits for
// the reader goroutines.
func (h *Hardware) Destroy() error {
	h.life.shutdown()
	h.wg.Wait()
	return nil
}

// Args returns the ffmpeg arguments for a video codec.
func (h *Hardware) Args(codec string) []string {
	format := "h264"
	if codec == "h265" {
		format = "hevc"
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-nostats"}
	if h.device != "" {
		args = append(args,
			"-hwaccel", "vaapi",
			"-hwaccel_device", h.device,
			"-hwaccel_output_format", "vaapi",
		)
	}
	return append(args,
		"-f", format,
		"-i", "pipe:0",
		"-f", "null", "-",
		"-progress", "pipe:1",
	)
}

func (h *Hardware) run() {
	defer close(h.life.done)

	var (
		stdin io.WriteCloser
		proc  *procgroup.Process
	)
	defer func() {
		if stdin != nil {
			_ = stdin.Close()
		}
		if proc != nil {
			if err := proc.Stop(stopGrace); err != nil {
				h.logger.Debug().Err(err).Str(log.FieldEvent, "decode.ffmpeg_exit").Msg("decoder process exited")
			}
		}
	}()

	for {
		var f media.Frame
		select {
		case <-h.life.stop:
			return
		case f = <-h.frames:
		}

		if proc == nil {
			if !f.Keyframe {
				continue
			}
			var err error
			stdin, proc, err = h.start(f.Codec)
			if err != nil {
				h.logger.Error().Err(err).Str(log.FieldEvent, "decode.ffmpeg_start_failed").Msg("hardware decoder failed to start")
				return
			}
		}

		h.track(f)
		if _, err := stdin.Write(f.Data); err != nil {
			select {
			case <-h.life.stop:
			default:
				h.logger.Warn().Err(err).Str(log.FieldEvent, "decode.ffmpeg_write_failed").Msg("hardware decoder input closed")
			}
			return
		}
	}
}

func (h *Hardware) start(codec string) (io.WriteCloser, *procgroup.Process, error) {
	args := h.Args(codec)
	cmd := h.command(h.bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("decode: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("decode: stdout pipe: %w", err)
	}
	proc, err := procgroup.Start(cmd)
	if err != nil {
		return nil, nil, err
	}
	h.logger.Info().
		Str(log.FieldEvent, "decode.ffmpeg_started").
		Str(log.FieldCodec, codec).
		Int("pid", proc.Pid()).
		Strs("args", args).
		Msg("hardware decoder started")

	h.wg.Add(1)
	go h.readProgress(stdout)
	return stdin, proc, nil
}

// track remembers a frame written to the decoder until it is reported.
func (h *Hardware) track(f media.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) >= maxPending {
		h.pending = h.pending[1:]
	}
	h.pending = append(h.pending, f)
}

func (h *Hardware) readProgress(r io.Reader) {
	defer h.wg.Done()
	var p progressParser
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		b, ok := p.ParseLine(sc.Text())
		if !ok {
			continue
		}
		h.report(b)
		if b.End {
			break
		}
	}
	// Drain so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// report renders and ticks every frame decoded since the last block.
func (h *Hardware) report(b progressBlock) {
	h.mu.Lock()
	n := b.Frame - h.decoded
	if n <= 0 {
		h.mu.Unlock()
		return
	}
	h.decoded = b.Frame
	out := make([]media.Frame, 0, n)
	for i := int64(0); i < n; i++ {
		if len(h.pending) == 0 {
			out = append(out, media.Frame{Kind: media.KindVideo, PTS: b.OutTime})
			continue
		}
		out = append(out, h.pending[0])
		h.pending = h.pending[1:]
	}
	var depth time.Duration
	if len(h.pending) > 0 {
		depth = h.pending[len(h.pending)-1].PTS - out[len(out)-1].PTS
	}
	h.mu.Unlock()

	for _, f := range out {
		if h.life.stopped() {
			return
		}
		if f.Data != nil && h.env.Video != nil {
			h.env.Video.Render(f)
		}
		h.env.OnTick(media.Tick{PTS: f.PTS, BufferedMs: millis(depth)})
	}
}
