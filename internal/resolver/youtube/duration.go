package youtube

import (
	"fmt"
	"strconv"
)

// parseDuration converts an ISO 8601 duration such as "PT1H2M3S" or "P1DT5M"
// to whole seconds.
func parseDuration(s string) (int, error) {
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	total := 0
	inTime := false
	num := 0
	hasNum := false
	for i := 1; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			n, _ := strconv.Atoi(string(ch))
			num = num*10 + n
			hasNum = true
			continue
		case ch == 'T':
			if hasNum || inTime {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
			continue
		}

		if !hasNum {
			return 0, fmt.Errorf("invalid duration %q", s)
		}

		switch {
		case ch == 'W' && !inTime:
			total += num * 7 * 24 * 3600
		case ch == 'D' && !inTime:
			total += num * 24 * 3600
		case ch == 'H' && inTime:
			total += num * 3600
		case ch == 'M' && inTime:
			total += num * 60
		case ch == 'S' && inTime:
			total += num
		default:
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		num = 0
		hasNum = false
	}

	if hasNum {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	return total, nil
}
