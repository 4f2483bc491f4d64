package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "http url", mutate: func(o *Options) { o.URL = "http://cam.local/live.ts" }},
		{name: "wss url", mutate: func(o *Options) { o.URL = "wss://cam.local/live" }},
		{name: "rtsp rejected", mutate: func(o *Options) { o.URL = "rtsp://cam.local/live" }, wantErr: true},
		{name: "no host", mutate: func(o *Options) { o.URL = "http:///live" }, wantErr: true},
		{name: "zero timeout", mutate: func(o *Options) { o.Timeout = 0 }, wantErr: true},
		{name: "negative buffer", mutate: func(o *Options) { o.VideoBuffer = -1 }, wantErr: true},
		{name: "zero buffer ok", mutate: func(o *Options) { o.VideoBuffer = 0 }},
		{name: "bad log level", mutate: func(o *Options) { o.LogLevel = "loud" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Defaults()
			tt.mutate(&o)
			err := Validate(o)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOptions)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
