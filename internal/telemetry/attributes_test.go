package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestSessionAttributes(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		url     string
		scheme  string
		wantLen int
	}{
		{name: "all fields", id: "s1", url: "http://cam/live.ts", scheme: "http", wantLen: 3},
		{name: "only id", id: "s1", wantLen: 1},
		{name: "empty", wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, SessionAttributes(tt.id, tt.url, tt.scheme), tt.wantLen)
		})
	}
}

func TestBackendAttributes(t *testing.T) {
	m := attrMap(BackendAttributes("hardware", "worker", "/dev/dri/renderD128", 10))
	require.Len(t, m, 4)
	assert.Equal(t, "hardware", m[BackendPrimaryKey].AsString())
	assert.Equal(t, "worker", m[BackendGateKey].AsString())
	assert.Equal(t, int64(10), m[TimeoutKey].AsInt64())
}

func TestErrorAttributes(t *testing.T) {
	m := attrMap(ErrorAttributes("fetch"))
	assert.True(t, m[ErrorKey].AsBool())
	assert.Equal(t, "fetch", m[ErrorTypeKey].AsString())
}
