package s3store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/serverlessresearch/s3store/pkg/objstore"
)

// toMillis returns t as milliseconds since the Unix epoch, truncating any
// sub-millisecond part.
func toMillis(t time.Time) (int64, error) {
	sec := t.Unix()
	if sec >= math.MaxInt64/1000 || sec <= math.MinInt64/1000 {
		return 0, &Error{Kind: KindConversion, Err: fmt.Errorf("timestamp %s does not fit in epoch milliseconds", t)}
	}
	return sec*1000 + int64(t.Nanosecond())/int64(time.Millisecond), nil
}

func fromMillis(ms int64) time.Time {
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
}

// normalizeTime turns a response timestamp into a UTC, millisecond resolution
// time. Absence is an error.
func normalizeTime(t *time.Time, field string) (time.Time, error) {
	if t == nil {
		return time.Time{}, missing(field)
	}
	ms, err := toMillis(*t)
	if err != nil {
		e := err.(*Error)
		e.Field = field
		return time.Time{}, e
	}
	return fromMillis(ms), nil
}

func normalizeSize(n *int64, field string) (int64, error) {
	if n == nil {
		return 0, missing(field)
	}
	if *n < 0 {
		return 0, &Error{Kind: KindConversion, Field: field, Err: fmt.Errorf("negative byte count %d", *n)}
	}
	return *n, nil
}

// parseContentRange accepts "bytes=<start>-<end>" (half-open) and the form S3
// actually sends, "bytes <first>-<last>/<size>" (inclusive, size may be "*").
// The returned total is the complete object size, or -1 when not reported.
func parseContentRange(s string) (r objstore.Range, total int64, err error) {
	total = -1
	switch {
	case strings.HasPrefix(s, "bytes="):
		start, end, err := parseBounds(s, strings.TrimPrefix(s, "bytes="))
		if err != nil {
			return r, -1, err
		}
		r = objstore.Range{Start: start, End: end}
	case strings.HasPrefix(s, "bytes "):
		rest := strings.TrimPrefix(s, "bytes ")
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return r, -1, malformedRange(s)
		}
		first, last, err := parseBounds(s, rest[:slash])
		if err != nil {
			return r, -1, err
		}
		if last == math.MaxInt64 {
			return r, -1, malformedRange(s)
		}
		r = objstore.Range{Start: first, End: last + 1}
		if size := rest[slash+1:]; size != "*" {
			total, err = parseOffset(size)
			if err != nil {
				return objstore.Range{}, -1, err
			}
			if r.End > total {
				return objstore.Range{}, -1, malformedRange(s)
			}
		}
	default:
		return r, -1, malformedRange(s)
	}
	if !r.Valid() {
		return objstore.Range{}, -1, malformedRange(s)
	}
	return r, total, nil
}

func parseBounds(raw, rest string) (int64, int64, error) {
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return 0, 0, malformedRange(raw)
	}
	a, err := parseOffset(rest[:dash])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseOffset(rest[dash+1:])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseOffset(s string) (int64, error) {
	v, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, &Error{Kind: KindParseInt, Field: "content-range", Err: err}
	}
	return int64(v), nil
}

func malformedRange(s string) error {
	return &Error{Kind: KindParseInt, Field: "content-range", Err: fmt.Errorf("malformed content range %q", s)}
}

// rangeHeader renders r as an HTTP range header, whose end is inclusive.
func rangeHeader(r objstore.Range) (string, error) {
	if !r.Valid() {
		return "", fmt.Errorf("invalid byte range %s", r)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End-1), nil
}
