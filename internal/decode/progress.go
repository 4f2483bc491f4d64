package decode

import (
	"strconv"
	"strings"
	"time"
)

// progressBlock is one key=value block of ffmpeg -progress output,
// terminated by a progress= line.
type progressBlock struct {
	Frame   int64
	OutTime time.Duration
	End     bool
}

// progressParser accumulates -progress lines into blocks.
type progressParser struct {
	cur progressBlock
}

// ParseLine feeds one line. It returns a block when the line closes one.
func (p *progressParser) ParseLine(line string) (progressBlock, bool) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return progressBlock{}, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "frame":
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			p.cur.Frame = n
		}
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		if us, err := strconv.ParseInt(val, 10, 64); err == nil && us >= 0 {
			p.cur.OutTime = time.Duration(us) * time.Microsecond
		}
	case "progress":
		b := p.cur
		b.End = val == "end"
		return b, true
	}
	return progressBlock{}, false
}
