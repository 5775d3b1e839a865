package rembes

import (
	"fmt"
	"time"
)

// CutoffDay is the first day of the month that belongs to that month's period.
// Days before it are billed to the previous month.
const CutoffDay = 25

// Period is a fiscal month bucket, rendered as "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the fiscal period containing t. Reimbursements close on
// the 24th, so 2024-01-10 belongs to 2023-12 and 2024-01-25 to 2024-01.
func PeriodOf(t time.Time) Period {
	year, month := t.Year(), t.Month()
	if t.Day() < CutoffDay {
		month--
		if month == 0 {
			month = time.December
			year--
		}
	}
	return Period{Year: year, Month: month}
}

// ParsePeriod parses a "YYYY-MM" string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label returns a human-readable name such as "January 2024".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}
