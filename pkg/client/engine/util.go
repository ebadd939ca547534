package engine

import (
	"strings"
	"time"
)

// timeValue is an intermediate seconds+nanoseconds pair used while
// converting the per-version wire time representations (v2's
// microsecond TimeVal, v3's nanosecond TimeVal, v4's NFSTime) to
// time.Time.
type timeValue struct {
	sec  int64
	nsec int64
}

func (t timeValue) toTime() time.Time {
	return time.Unix(t.sec, t.nsec)
}

// splitPath turns a canonical "."-rooted, "\"-separated path into its
// non-root components, matching the façade's path normalization and
// nfs/v4's own splitPath.
func splitPath(path string) []string {
	parts := strings.Split(path, `\`)
	var comps []string
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		comps = append(comps, p)
	}
	return comps
}
