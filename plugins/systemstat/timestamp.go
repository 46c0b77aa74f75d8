package systemstat

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"systemstat/base"
)

// timestamp is now plus the parameter offset, in unix seconds with
// millisecond resolution. An unusable offset counts as zero.
func timestamp(_ context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	t := b.d.now().Add(parseOffset(req.Parameter))
	return unixSeconds(t), nil
}

// maxOffset keeps now+offset inside time.Duration range.
const maxOffset = 1e9

// parseOffset splits a decimal number of seconds into whole seconds and
// truncated milliseconds.
func parseOffset(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > maxOffset {
		return 0
	}
	sec := math.Trunc(f)
	ms := math.Trunc(math.Round((f-sec)*1e6) / 1e3)
	return time.Duration(sec)*time.Second + time.Duration(ms)*time.Millisecond
}
