package strategy

import (
	"testing"
	"time"

	"swingline/core"

	"github.com/stretchr/testify/assert"
)

func frameAt(points map[time.Time]float64, order []time.Time) *core.Dataframe {
	df := core.NewDataframe("TEST")
	for _, ts := range order {
		close := points[ts]
		df.Append(core.Candle{
			Symbol: "TEST", Time: ts,
			Open: close, High: close, Low: close, Close: close,
			Complete: true,
		})
	}
	return df
}

func TestWeeklyClosesBucketsByMonday(t *testing.T) {
	days := []time.Time{
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),  // Monday
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), // Wednesday
		time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), // Friday
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC), // Sunday, same week
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), // next Monday
		time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	points := map[time.Time]float64{
		days[0]: 1, days[1]: 2, days[2]: 3, days[3]: 3.5, days[4]: 4, days[5]: 5,
	}

	weekly := WeeklyCloses(frameAt(points, days))
	assert.Equal(t, []float64{3.5, 5}, weekly)
}

func TestWeeklyPartialBucketUsesLatestClose(t *testing.T) {
	days := []time.Time{
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), // lone bar of the new week
	}
	points := map[time.Time]float64{days[0]: 10, days[1]: 11, days[2]: 12}

	weekly := WeeklyCloses(frameAt(points, days))
	// the open week contributes its latest daily close, nothing later
	assert.Equal(t, []float64{11, 12}, weekly)
}

func TestMonthlyClosesBucketsByMonth(t *testing.T) {
	days := []time.Time{
		time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	}
	points := map[time.Time]float64{days[0]: 1, days[1]: 2, days[2]: 3, days[3]: 4}

	monthly := MonthlyCloses(frameAt(points, days))
	assert.Equal(t, []float64{2, 4}, monthly)
}

func TestResampleEmptyFrame(t *testing.T) {
	df := core.NewDataframe("TEST")
	assert.Nil(t, WeeklyCloses(df))
	assert.Nil(t, MonthlyCloses(df))
}
