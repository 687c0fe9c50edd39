package httpx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrRangeInvalid reports a Range header we can't parse. Treated as
	// "no range" by callers per RFC 9110 (a server MAY ignore it).
	ErrRangeInvalid = errors.New("httpx: invalid range header")

	// ErrRangeUnsatisfiable reports a syntactically valid range outside the
	// resource bounds. Callers respond 416 with Content-Range: bytes */size.
	ErrRangeUnsatisfiable = errors.New("httpx: range not satisfiable")
)

// ByteRange is a resolved inclusive byte range within a resource of known
// size. Start <= End < Size always holds for values returned by ParseRange.
type ByteRange struct {
	Start int64
	End   int64
	Size  int64
}

// Length returns the number of bytes the range covers.
func (br ByteRange) Length() int64 {
	return br.End - br.Start + 1
}

// ContentRange renders the Content-Range header value for a 206 response.
func (br ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, br.Size)
}

// RangeHeader renders the Range header value for the upstream fetch.
func (br ByteRange) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", br.Start, br.End)
}

// ContentRangeUnsatisfied renders the Content-Range header value for a 416
// response.
func ContentRangeUnsatisfied(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseRange resolves a single-range header of the form "bytes=<start>-<end?>"
// against a resource of known size. An omitted end means "to the end"; a
// given end past the resource is capped to size-1. A start at or past the
// resource end, or an end before start, yields ErrRangeUnsatisfiable.
//
// Multi-range requests are not supported and parse as invalid.
func ParseRange(header string, size int64) (ByteRange, error) {
	const prefix = "bytes="

	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, prefix) {
		return ByteRange{}, ErrRangeInvalid
	}

	spec := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if strings.Contains(spec, ",") {
		return ByteRange{}, ErrRangeInvalid
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || startStr == "" {
		return ByteRange{}, ErrRangeInvalid
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, ErrRangeInvalid
	}

	// Open-ended range: everything from start.
	end := size - 1
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return ByteRange{}, ErrRangeInvalid
		}
		if end > size-1 {
			end = size - 1
		}
	}

	if start >= size || end < start {
		return ByteRange{}, ErrRangeUnsatisfiable
	}

	return ByteRange{Start: start, End: end, Size: size}, nil
}
