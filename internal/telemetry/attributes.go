package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by playback spans.
const (
	SessionIDKey = "session.id"

	StreamURLKey    = "stream.url"
	StreamSchemeKey = "stream.scheme"

	BackendPrimaryKey = "decode.backend"
	BackendGateKey    = "decode.gate"
	HardwareDeviceKey = "decode.hw_device"

	TimeoutKey = "playback.timeout_s"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes describes the session a span belongs to. Empty values
// are omitted.
func SessionAttributes(sessionID, maskedURL, scheme string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if maskedURL != "" {
		attrs = append(attrs, attribute.String(StreamURLKey, maskedURL))
	}
	if scheme != "" {
		attrs = append(attrs, attribute.String(StreamSchemeKey, scheme))
	}
	return attrs
}

// BackendAttributes describes the decode backend selection.
func BackendAttributes(primary, gate, device string, timeoutS int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BackendPrimaryKey, primary),
		attribute.String(BackendGateKey, gate),
		attribute.String(HardwareDeviceKey, device),
		attribute.Int(TimeoutKey, timeoutS),
	}
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
