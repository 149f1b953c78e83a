package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tenure is a duration label for fixed-income instruments: a positive
// integer followed by "M" (months) or "Y" (years), e.g. "6M", "1Y", "5Y".
type Tenure string

// Months parses the tenure label into whole months.
func (t Tenure) Months() (int, error) {
	s := strings.TrimSpace(string(t))
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid tenure %q", t)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid tenure %q", t)
	}
	switch unit {
	case 'M', 'm':
		return n, nil
	case 'Y', 'y':
		return n * 12, nil
	default:
		return 0, fmt.Errorf("invalid tenure unit in %q", t)
	}
}

// Maturity returns the maturity date for an acquisition at the given time.
func (t Tenure) Maturity(from time.Time) (time.Time, error) {
	months, err := t.Months()
	if err != nil {
		return time.Time{}, err
	}
	return from.AddDate(0, months, 0), nil
}
