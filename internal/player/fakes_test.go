package player

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/liveplay/internal/bus"
	"github.com/ManuGH/liveplay/internal/capability"
	"github.com/ManuGH/liveplay/internal/clock/clocktest"
	"github.com/ManuGH/liveplay/internal/config"
	"github.com/ManuGH/liveplay/internal/media"
	"github.com/ManuGH/liveplay/internal/stats"
	"github.com/stretchr/testify/require"
)

// callLog records calls across fakes in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeTransport struct {
	events  *bus.Bus
	sink    io.Writer
	log     *callLog
	onFetch func(ft *fakeTransport, url string)

	mu        sync.Mutex
	urls      []string
	destroyed int
}

func (f *fakeTransport) FetchStream(url string) error {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch(f, url)
	}
	return nil
}

func (f *fakeTransport) Events() *bus.Bus { return f.events }

func (f *fakeTransport) Destroy() error {
	f.mu.Lock()
	f.destroyed++
	f.mu.Unlock()
	f.log.add("destroy transport")
	return nil
}

func fetchSucceeds(ft *fakeTransport, url string) {
	bus.Publish(ft.events, media.StreamSuccess, url)
}

type fakeDemuxer struct {
	sink media.FrameSink
	log  *callLog

	mu      sync.Mutex
	written int
}

func (f *fakeDemuxer) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written += len(p)
	return len(p), nil
}

func (f *fakeDemuxer) Destroy() error {
	f.log.add("destroy demux")
	return errors.New("demux already gone")
}

type fakeBackend struct {
	kind  BackendKind
	env   BackendEnv
	ready chan struct{}
	log   *callLog
	drain func()

	mu     sync.Mutex
	frames []media.Frame
}

func (f *fakeBackend) Kind() BackendKind      { return f.kind }
func (f *fakeBackend) Ready() <-chan struct{} { return f.ready }
func (f *fakeBackend) Destroy() error         { f.log.add("destroy %s", f.kind); return nil }
func (f *fakeBackend) tick(pts time.Duration) { f.emit(media.Tick{PTS: pts, BufferedMs: 40}) }

// emit delivers tk like a backend goroutine and waits for the resulting
// notifications.
func (f *fakeBackend) emit(tk media.Tick) {
	f.env.OnTick(tk)
	f.drain()
}
func (f *fakeBackend) WriteFrame(fr media.Frame) {
	f.mu.Lock()
	f.frames = append(f.frames, fr)
	f.mu.Unlock()
}

func (f *fakeBackend) frameKinds() []media.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []media.Kind
	for _, fr := range f.frames {
		out = append(out, fr.Kind)
	}
	return out
}

type fakeVideo struct {
	log     *callLog
	mu      sync.Mutex
	started bool
	cleared int
}

func (f *fakeVideo) Play()              { f.mu.Lock(); f.started = true; f.mu.Unlock() }
func (f *fakeVideo) Started() bool      { f.mu.Lock(); defer f.mu.Unlock(); return f.started }
func (f *fakeVideo) Render(media.Frame) {}
func (f *fakeVideo) ClearView()         { f.mu.Lock(); f.cleared++; f.mu.Unlock() }
func (f *fakeVideo) Destroy() error     { f.log.add("destroy video"); return nil }

type fakeAudio struct {
	log    *callLog
	mu     sync.Mutex
	volume float64
	muted  bool
	paused int
}

func (f *fakeAudio) Volume() float64     { f.mu.Lock(); defer f.mu.Unlock(); return f.volume }
func (f *fakeAudio) SetVolume(v float64) { f.mu.Lock(); f.volume = v; f.mu.Unlock() }
func (f *fakeAudio) Mute(flag bool)      { f.mu.Lock(); f.muted = flag; f.mu.Unlock() }
func (f *fakeAudio) Muted() bool         { f.mu.Lock(); defer f.mu.Unlock(); return f.muted }
func (f *fakeAudio) Pause()              { f.mu.Lock(); f.paused++; f.mu.Unlock() }
func (f *fakeAudio) Write(media.Frame)   {}
func (f *fakeAudio) Destroy() error      { f.log.add("destroy audio"); return nil }

type fakeRecorder struct {
	log       *callLog
	mu        sync.Mutex
	recording bool
	name      string
	bytes     int
	saved     []string
}

func (f *fakeRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bytes += len(p)
	return len(p), nil
}

func (f *fakeRecorder) StartRecord(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording, f.name = true, name
	return nil
}

func (f *fakeRecorder) StopRecordAndSave() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = false
	f.saved = append(f.saved, f.name)
	return "/rec/" + f.name + ".ts", nil
}

func (f *fakeRecorder) Recording() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.recording }
func (f *fakeRecorder) Destroy() error  { f.log.add("destroy recorder"); return nil }

type fakeWakeLock struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (f *fakeWakeLock) Acquire() error { f.mu.Lock(); f.acquired++; f.mu.Unlock(); return nil }
func (f *fakeWakeLock) Release() error { f.mu.Lock(); f.released++; f.mu.Unlock(); return nil }

type fakeControl struct{ log *callLog }

func (f *fakeControl) Destroy() error { f.log.add("destroy control"); return nil }

// eventLog records every notification as "name" or "name:value".
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, s)
}

func (e *eventLog) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func (e *eventLog) count(s string) int {
	n := 0
	for _, ev := range e.all() {
		if ev == s {
			n++
		}
	}
	return n
}

func recordEvents(b *bus.Bus) *eventLog {
	el := &eventLog{}
	flag := func(name string) func(bool) { return func(v bool) { el.add(fmt.Sprintf("%s:%t", name, v)) } }
	bare := func(name string) func(struct{}) { return func(struct{}) { el.add(name) } }
	bus.Subscribe(b, EventLoading, flag("loading"))
	bus.Subscribe(b, EventPlaying, flag("playing"))
	bus.Subscribe(b, EventRecording, flag("recording"))
	bus.Subscribe(b, EventFullscreen, flag("fullscreen"))
	bus.Subscribe(b, EventWebFullscreen, flag("webFullscreen"))
	bus.Subscribe(b, EventPlay, bare("play"))
	bus.Subscribe(b, EventPause, bare("pause"))
	bus.Subscribe(b, EventStart, bare("start"))
	bus.Subscribe(b, EventDestroy, bare("destroy"))
	bus.Subscribe(b, EventTimeout, func(r TimeoutReason) { el.add("timeout:" + string(r)) })
	bus.Subscribe(b, EventVolumeChange, func(v float64) { el.add(fmt.Sprintf("volumechange:%.1f", v)) })
	bus.Subscribe(b, EventStats, func(s stats.Snapshot) { el.add(fmt.Sprintf("stats:%d", s.FPS)) })
	bus.Subscribe(b, EventPerformance, func(l stats.Level) { el.add("performance:" + l.String()) })
	return el
}

type harness struct {
	t      *testing.T
	clk    *clocktest.Fake
	c      *Controller
	calls  *callLog
	events *eventLog

	video   *fakeVideo
	audio   *fakeAudio
	rec     *fakeRecorder
	wake    *fakeWakeLock
	control *fakeControl

	mu          sync.Mutex
	transports  []*fakeTransport
	demuxers    []*fakeDemuxer
	backends    map[BackendKind][]*fakeBackend
	notReady    map[BackendKind]bool
	backendMade chan BackendKind
}

type harnessOpt func(h *harness, opts *config.Options, deps *Deps)

func withCaps(caps capability.Capabilities) harnessOpt {
	return func(_ *harness, _ *config.Options, deps *Deps) { deps.Probe = capability.Static{Caps: caps} }
}

func withOptions(fn func(*config.Options)) harnessOpt {
	return func(_ *harness, opts *config.Options, _ *Deps) { fn(opts) }
}

func withFetch(fn func(*fakeTransport, string)) harnessOpt {
	return func(_ *harness, _ *config.Options, deps *Deps) {
		prev := deps.NewTransport
		deps.NewTransport = func(sink io.Writer) (Transport, error) {
			tr, err := prev(sink)
			if err == nil {
				tr.(*fakeTransport).onFetch = fn
			}
			return tr, err
		}
	}
}

func withBackendNotReady(kind BackendKind) harnessOpt {
	return func(h *harness, _ *config.Options, _ *Deps) { h.notReady[kind] = true }
}

func newHarness(t *testing.T, opts ...harnessOpt) *harness {
	t.Helper()
	calls := &callLog{}
	h := &harness{
		t:           t,
		clk:         clocktest.New(time.Unix(1_700_000_000, 0)),
		calls:       calls,
		video:       &fakeVideo{log: calls},
		audio:       &fakeAudio{log: calls, volume: 0.5},
		rec:         &fakeRecorder{log: calls},
		wake:        &fakeWakeLock{},
		control:     &fakeControl{log: calls},
		backends:    make(map[BackendKind][]*fakeBackend),
		notReady:    make(map[BackendKind]bool),
		backendMade: make(chan BackendKind, 64),
	}

	o := config.Defaults()
	o.URL = "http://cam.test/live.ts"
	deps := Deps{
		Clock: h.clk,
		Probe: capability.Static{Caps: capability.Capabilities{
			HardwareDecode: true, BufferedPlayback: true, OffscreenRender: true,
		}},
		NewTransport: func(sink io.Writer) (Transport, error) {
			tr := &fakeTransport{events: bus.New(), sink: sink, log: calls, onFetch: fetchSucceeds}
			h.mu.Lock()
			h.transports = append(h.transports, tr)
			h.mu.Unlock()
			return tr, nil
		},
		NewDemuxer: func(sink media.FrameSink, _ func(media.Kind, int)) (Demuxer, error) {
			d := &fakeDemuxer{sink: sink, log: calls}
			h.mu.Lock()
			h.demuxers = append(h.demuxers, d)
			h.mu.Unlock()
			return d, nil
		},
		NewBackend: func(kind BackendKind, env BackendEnv) (DecodeBackend, error) {
			b := &fakeBackend{kind: kind, env: env, ready: make(chan struct{}), log: calls, drain: h.drain}
			h.mu.Lock()
			if !h.notReady[kind] {
				close(b.ready)
			}
			h.backends[kind] = append(h.backends[kind], b)
			h.mu.Unlock()
			h.backendMade <- kind
			return b, nil
		},
		Video:    h.video,
		Audio:    h.audio,
		Recorder: h.rec,
		WakeLock: h.wake,
		NewControl: func(*Controller) (ControlSurface, error) {
			return h.control, nil
		},
	}
	for _, fn := range opts {
		fn(h, &o, &deps)
	}

	c, err := New(o, deps)
	require.NoError(t, err)
	h.c = c
	h.events = recordEvents(c.Events())
	t.Cleanup(c.Destroy)
	return h
}

// drain waits until the dispatch goroutine has published every queued
// notification.
func (h *harness) drain() {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		h.c.mu.Lock()
		defer h.c.mu.Unlock()
		return len(h.c.outbox) == 0 && !h.c.dispatching
	}, time.Second, time.Millisecond)
}

func (h *harness) backend(kind BackendKind) *fakeBackend {
	h.mu.Lock()
	defer h.mu.Unlock()
	bs := h.backends[kind]
	require.NotEmpty(h.t, bs, "no %s backend", kind)
	return bs[len(bs)-1]
}

func (h *harness) backendCount(kind BackendKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.backends[kind])
}

func (h *harness) transport() *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(h.t, h.transports)
	return h.transports[len(h.transports)-1]
}

// ticks delivers n ticks at 30 fps through the backend of the given kind.
func (h *harness) ticks(kind BackendKind, n int) {
	b := h.backend(kind)
	for i := 0; i < n; i++ {
		h.clk.Advance(time.Second / 30)
		b.tick(time.Duration(i) * time.Second / 30)
	}
}
