package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-01 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestBuildTrendGroupsByHour(t *testing.T) {
	trend := BuildTrend([]Reading{
		{BinID: "B1", Fullness: 10, RecordedAt: at("10:05")},
		{BinID: "B2", Fullness: 20, RecordedAt: at("10:50")},
		{BinID: "B1", Fullness: 80, RecordedAt: at("11:10")},
	})

	require.Len(t, trend, 2)
	assert.Equal(t, at("10:00"), trend[0].Hour)
	assert.Equal(t, "10:00", trend[0].Label)
	assert.Equal(t, 15.0, trend[0].AvgFullness)
	assert.Equal(t, at("11:00"), trend[1].Hour)
	assert.Equal(t, 80.0, trend[1].AvgFullness)
}

func TestBuildTrendRoundsToOneDecimal(t *testing.T) {
	trend := BuildTrend([]Reading{
		{Fullness: 10, RecordedAt: at("08:01")},
		{Fullness: 10, RecordedAt: at("08:02")},
		{Fullness: 11, RecordedAt: at("08:03")},
	})
	require.Len(t, trend, 1)
	assert.Equal(t, 10.3, trend[0].AvgFullness)
}

func TestBuildTrendEmpty(t *testing.T) {
	trend := BuildTrend(nil)
	assert.NotNil(t, trend)
	assert.Empty(t, trend)
}

func TestComputeViewPartitionsBins(t *testing.T) {
	bins := []Bin{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
	readings := []Reading{
		{BinID: "A", Fullness: 95, Weight: 40, RecordedAt: at("09:00")},
		{BinID: "B", Fullness: 10, Weight: 2, RecordedAt: at("09:00")},
		{BinID: "B", Fullness: 45, Weight: 12, RecordedAt: at("09:30")},
		{BinID: "C", Fullness: 80, Weight: 30, RecordedAt: at("09:45")},
	}

	v := ComputeView(bins, readings, at("10:00"))

	assert.Equal(t, 4, v.KPIs.TotalBins)
	assert.Equal(t, 2, v.KPIs.Full)
	assert.Equal(t, 1, v.KPIs.Half)
	assert.Equal(t, 1, v.KPIs.Normal, "bin without readings counts as empty")
	assert.Equal(t, v.KPIs.TotalBins, v.KPIs.Full+v.KPIs.Half+v.KPIs.Normal)
	assert.Equal(t, 55.0, v.KPIs.AvgFullness)
	assert.Equal(t, 20.5, v.KPIs.AvgWeight)

	require.Len(t, v.Histogram, 3)
	assert.Equal(t, 2, v.Histogram[0].Value)
	assert.Equal(t, 1, v.Histogram[1].Value)
	assert.Equal(t, 1, v.Histogram[2].Value)

	require.Len(t, v.Bins, 4)
	assert.Equal(t, 45.0, v.Bins[1].Fullness, "latest reading wins")
	require.NotNil(t, v.Bins[1].LastUpdated)
	assert.Equal(t, at("09:30"), *v.Bins[1].LastUpdated)
	assert.Nil(t, v.Bins[3].LastUpdated)
	assert.Equal(t, StatusNormal, v.Bins[3].Status)
	assert.Equal(t, at("10:00"), v.ComputedAt)
}

func TestComputeViewWithoutBins(t *testing.T) {
	v := ComputeView(nil, nil, time.Time{})

	assert.Equal(t, KPIs{}, v.KPIs)
	assert.NotNil(t, v.Histogram)
	assert.Empty(t, v.Histogram)
	assert.Empty(t, v.Trend)
	assert.Empty(t, v.Bins)
}

func TestComputeViewBinsWithoutReadings(t *testing.T) {
	v := ComputeView([]Bin{{ID: "A"}, {ID: "B"}}, nil, at("10:00"))

	assert.Equal(t, 2, v.KPIs.Normal)
	require.Len(t, v.Histogram, 3)
	assert.Equal(t, 0, v.Histogram[0].Value)
	assert.Equal(t, 2, v.Histogram[2].Value)
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		fullness, weight float64
		want             BinStatus
	}{
		{95, 0, StatusCritical},
		{90, 0, StatusFull},
		{76, 0, StatusFull},
		{75, 0, StatusPartial},
		{51, 0, StatusPartial},
		{50, 1, StatusActive},
		{0, 0.1, StatusActive},
		{50, 0, StatusNormal},
		{0, 0, StatusNormal},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyStatus(c.fullness, c.weight), "fullness=%v weight=%v", c.fullness, c.weight)
	}
}

func TestLatestByBin(t *testing.T) {
	latest := LatestByBin([]Reading{
		{BinID: "A", Fullness: 1, RecordedAt: at("08:00")},
		{BinID: "B", Fullness: 2, RecordedAt: at("08:10")},
		{BinID: "A", Fullness: 3, RecordedAt: at("08:20")},
	})
	require.Len(t, latest, 2)
	assert.Equal(t, 3.0, latest["A"].Fullness)
	assert.Equal(t, 2.0, latest["B"].Fullness)
}
