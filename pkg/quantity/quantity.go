// Package quantity converts Kubernetes memory quantity strings to and from
// whole mebibytes, the unit all remediation arithmetic runs in.
package quantity

import (
	"regexp"
	"strconv"
)

// FallbackMiB is the value assumed for quantity strings that carry no
// leading digits. Remediation must degrade rather than block on a
// malformed limit, so parsing falls back instead of failing.
const FallbackMiB = 256

// multipliers maps a unit suffix to its size in MiB. Binary suffixes are
// exact powers of two; decimal suffixes are the 1000-based ladder expressed
// in MiB.
var multipliers = map[string]float64{
	"Ki": 1.0 / 1024,
	"Mi": 1,
	"Gi": 1024,
	"K":  1000.0 / (1024 * 1024),
	"M":  1000.0 / 1024,
	"G":  (1000.0 * 1000.0) / 1024,
}

// quantityPattern captures the leading digit run and the unit suffix.
// Anything after the first non-alphabetic character is ignored, so
// "12.5Gi" parses as 12 plain MiB.
var quantityPattern = regexp.MustCompile(`^(\d+)([a-zA-Z]*)`)

// ParseMiB converts a memory quantity string to whole MiB, truncating
// fractional results. Unknown suffixes are treated as already-MiB; strings
// without leading digits yield FallbackMiB.
func ParseMiB(s string) int64 {
	m := quantityPattern.FindStringSubmatch(s)
	if m == nil {
		return FallbackMiB
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return FallbackMiB
	}
	mult, ok := multipliers[m[2]]
	if !ok {
		mult = 1
	}
	return int64(float64(value) * mult)
}

// FormatMiB renders a whole-MiB value as the quantity string used in
// patches and audit messages.
func FormatMiB(mib int64) string {
	return strconv.FormatInt(mib, 10) + "Mi"
}
