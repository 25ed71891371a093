package trading

import "time"

// expirationBusinessDays is the fixed trade horizon: contracts expire two
// business days out
const expirationBusinessDays = 2

// expiryDateLayout is the date format the brokerage expects
const expiryDateLayout = "2006-01-02"

// NextExpiration returns the options expiration date two business days after
// today. It walks forward one calendar day at a time, counting only
// Monday-Friday; a weekend start date is itself not counted. Market holidays
// are NOT excluded - the system has no holiday calendar, a known limitation.
// Pure and deterministic: the same input always yields the same output.
func NextExpiration(today time.Time) time.Time {
	remaining := expirationBusinessDays
	date := today
	for remaining > 0 {
		date = date.AddDate(0, 0, 1)
		if wd := date.Weekday(); wd != time.Saturday && wd != time.Sunday {
			remaining--
		}
	}
	return date
}
