package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ByteRange is an inclusive byte span within an object.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ContentRange renders the Content-Range header value for an object of total bytes.
func (r ByteRange) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange reads a single "bytes=start-[end]" range against an object of
// size bytes. The end is clamped to size-1. Anything it cannot serve as one
// range (bad syntax, suffix ranges, multiple ranges, a start beyond the end
// of the object) reports false so the caller sends the whole object instead.
func ParseRange(header string, size int64) (ByteRange, bool) {
	const unit = "bytes="
	header = strings.TrimSpace(header)
	if size <= 0 || !strings.HasPrefix(header, unit) {
		return ByteRange{}, false
	}
	spec := strings.TrimSpace(header[len(unit):])
	if strings.Contains(spec, ",") {
		return ByteRange{}, false
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return ByteRange{}, false
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)
	if startStr == "" {
		return ByteRange{}, false
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return ByteRange{}, false
	}
	end := size - 1
	if endStr != "" {
		e, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || e < start {
			return ByteRange{}, false
		}
		if e < end {
			end = e
		}
	}
	return ByteRange{Start: start, End: end}, true
}

// Delivery is an opened video ready to be written to a client.
// The caller must close Body.
type Delivery struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Total         int64
	// Range is set for partial content.
	Range *ByteRange
}

func (d *Delivery) Partial() bool { return d.Range != nil }

// ContentRange is empty for full content.
func (d *Delivery) ContentRange() string {
	if d.Range == nil {
		return ""
	}
	return d.Range.ContentRange(d.Total)
}
