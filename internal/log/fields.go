// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldBackend   = "backend"
	FieldReason    = "reason"

	// Media / stream fields
	FieldCodec     = "codec"
	FieldFPS       = "fps"
	FieldPTS       = "pts"
	FieldBuffered  = "buffered_ms"
	FieldTrackPID  = "pid"
	FieldFrameKind = "frame_kind"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldURL  = "url"
	FieldPath = "path"
)
