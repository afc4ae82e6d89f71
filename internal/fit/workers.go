package fit

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseWorkers reads a worker count flag: a positive integer, or "auto"
// which maps to 0 so Run picks GOMAXPROCS.
func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "":
		return 0, fmt.Errorf("empty worker count (use integer >= 1 or 'auto')")
	case "auto":
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("worker count %q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("worker count %d must be >= 1", n)
	}
	return n, nil
}
