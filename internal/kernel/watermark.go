// File: internal/kernel/watermark.go
// Author: momentics <momentics@gmail.com>
//
// Fill watermark and kernel release helpers shared by every platform.

package kernel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/momentics/hioload-rngd/api"
)

// DefaultPoolBits is used when the pool size cannot be read.
const DefaultPoolBits = 4096

// Watermark converts the configured fill watermark into a percentage of the
// kernel pool. A negative value is a percentage of capacity (-90 means feed
// until the pool is 90% full); a positive value is an absolute number of
// bits, capped by poolBits.
func Watermark(raw, poolBits int) (float64, error) {
	if poolBits <= 0 {
		poolBits = DefaultPoolBits
	}
	switch {
	case raw < 0 && raw >= -100:
		return float64(-raw), nil
	case raw > 0 && raw <= poolBits:
		return 100 * float64(raw) / float64(poolBits), nil
	}
	return 0, api.Wrap(api.ErrCodeUsage, api.ErrInvalidArgument,
		fmt.Sprintf("fill watermark %d: want -100..-1 (percent) or 1..%d (bits)", raw, poolBits))
}

// MinRelease is the oldest kernel with the random ioctls the sink relies on.
var MinRelease = [2]int{2, 6}

// CheckRelease parses a uname release string such as "6.8.0-41-generic" and
// rejects kernels older than MinRelease.
func CheckRelease(release string) error {
	maj, min, err := parseRelease(release)
	if err != nil {
		return api.Wrap(api.ErrCodeOS, api.ErrNotSupported, "unrecognised kernel release").
			WithContext("release", release)
	}
	if maj < MinRelease[0] || (maj == MinRelease[0] && min < MinRelease[1]) {
		return api.Wrap(api.ErrCodeOS, api.ErrNotSupported, "unsupported kernel").
			WithContext("release", release)
	}
	return nil
}

func parseRelease(release string) (int, int, error) {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("kernel release %q: %w", release, api.ErrInvalidArgument)
	}
	maj, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	minor := parts[1]
	if i := strings.IndexFunc(minor, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minor = minor[:i]
	}
	min, err := strconv.Atoi(minor)
	if err != nil {
		return 0, 0, err
	}
	return maj, min, nil
}
