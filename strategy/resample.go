package strategy

import (
	"time"

	"swingline/core"
)

// resampleCloses groups the daily series into buckets keyed by bucketOf and
// returns the closing price of each bucket in chronological order. The
// last bucket may be partial; its close is the latest daily close, so no
// future information leaks into the confirmation.
func resampleCloses(df *core.Dataframe, bucketOf func(time.Time) time.Time) []float64 {
	if df.Len() == 0 {
		return nil
	}

	var closes []float64
	currentBucket := bucketOf(df.Time[0])

	for i := range df.Time {
		bucket := bucketOf(df.Time[i])
		if bucket.Equal(currentBucket) && len(closes) > 0 {
			closes[len(closes)-1] = df.Close[i]
			continue
		}
		currentBucket = bucket
		closes = append(closes, df.Close[i])
	}

	return closes
}

// weekOf returns the Monday starting the bar's week.
func weekOf(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the preceding Monday
	}
	day := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// monthOf returns the first day of the bar's month.
func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// WeeklyCloses resamples the daily series to weekly closing prices.
func WeeklyCloses(df *core.Dataframe) []float64 {
	return resampleCloses(df, weekOf)
}

// MonthlyCloses resamples the daily series to monthly closing prices.
func MonthlyCloses(df *core.Dataframe) []float64 {
	return resampleCloses(df, monthOf)
}
