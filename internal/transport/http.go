// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"context"
	"net/http"

	"github.com/ManuGH/liveplay/internal/log"
	"github.com/ManuGH/liveplay/internal/media"
)

// runHTTP performs a progressive GET and streams the body.
func (s *Stream) runHTTP(ctx context.Context, sig *signals, rawURL, scheme string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		sig.fail(media.FetchError, err)
		return
	}
	req.Header.Set("Accept", "video/mp2t, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Str(log.FieldEvent, "transport.fetch_failed").Msg("http request failed")
			sig.fail(media.FetchError, err)
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{Code: resp.StatusCode}
		s.logger.Warn().Err(err).Str(log.FieldEvent, "transport.fetch_failed").Msg("http status rejected")
		sig.fail(media.FetchError, err)
		return
	}

	sig.success(rawURL)
	s.finish(ctx, sig, media.FetchError, s.pump(ctx, resp.Body.Read, scheme))
}
