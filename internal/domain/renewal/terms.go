package renewal

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves t by months calendar months, clamping the day to the
// last day of the target month. Jan 31 plus one month is Feb 28 (or 29).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := Date(t).Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// NoticeDeadline is the last day a renewal or termination decision can be
// communicated: endDate minus noticePeriodDays.
func NoticeDeadline(endDate time.Time, noticePeriodDays int) time.Time {
	return Date(endDate).AddDate(0, 0, -noticePeriodDays)
}

// RenewedTerms computes the as-is renewal: the new term starts the day after
// endDate, runs termMonths (see AddMonths for month-end starts), and its value is the current value uplifted by
// upliftPercent. The uplift applies to the current value only; it is not
// compounded across earlier renewals.
func RenewedTerms(endDate time.Time, termMonths int, value, upliftPercent decimal.Decimal) (Terms, error) {
	if endDate.IsZero() || termMonths <= 0 {
		return Terms{}, ErrInvalidTerms
	}
	start := Date(endDate).AddDate(0, 0, 1)
	end := AddMonths(start, termMonths).AddDate(0, 0, -1)
	factor := decimal.NewFromInt(1).Add(upliftPercent.Div(hundred))
	return Terms{
		StartDate: start,
		EndDate:   end,
		Value:     value.Mul(factor),
	}, nil
}

// LifetimeValue sums the values of a contract and all of its ancestors.
func LifetimeValue(chain []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range chain {
		total = total.Add(v)
	}
	return total
}
