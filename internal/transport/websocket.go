package transport

import (
	"context"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
	"golang.org/x/net/websocket"
)

// runWebSocket dials rawURL and streams binary frames.
func (s *Stream) runWebSocket(ctx context.Context, sig *signals, rawURL, scheme string) {
	cfg, err := websocket.NewConfig(rawURL, s.origin)
	if err != nil {
		sig.fail(media.SocketError, err)
		return
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Str(log.FieldEvent, "transport.socket_failed").Msg("websocket dial failed")
			sig.fail(media.SocketError, err)
		}
		return
	}
	// Destroy closes the conn to unblock Read.
	if !s.setCloser(ctx, conn) {
		_ = conn.Close()
		return
	}
	defer func() { _ = conn.Close() }()
	conn.PayloadType = websocket.BinaryFrame

	sig.success(rawURL)
	s.finish(ctx, sig, media.SocketError, s.pump(ctx, conn.Read, scheme))
}
