package main

import (
	"math"
	"sort"
	"time"
)

// Prahy pro KPI a histogram (procenta zaplnění).
// Záměrně jiné než prahy pro stav koše v ClassifyStatus.
const (
	fullThreshold = 80.0
	halfThreshold = 40.0
)

// ClassifyStatus určí stav koše. Pořadí podmínek je podstatné.
func ClassifyStatus(fullness, weight float64) BinStatus {
	switch {
	case fullness > 90:
		return StatusCritical
	case fullness > 75:
		return StatusFull
	case fullness > 50:
		return StatusPartial
	case weight > 0:
		return StatusActive
	default:
		return StatusNormal
	}
}

// LatestByBin vrací poslední měření každého koše. Vstup musí být seřazený
// vzestupně podle recorded_at, pozdější měření přepisuje dřívější.
func LatestByBin(readings []Reading) map[string]Reading {
	latest := make(map[string]Reading)
	for _, r := range readings {
		latest[r.BinID] = r
	}
	return latest
}

// ComputeView spočítá všechny agregace z košů a měření v okně.
func ComputeView(bins []Bin, readings []Reading, now time.Time) View {
	summaries := summarize(bins, LatestByBin(readings))
	kpis := computeKPIs(summaries)

	return View{
		KPIs:       kpis,
		Histogram:  buildHistogram(kpis),
		Trend:      BuildTrend(readings),
		Bins:       summaries,
		ComputedAt: now,
	}
}

func summarize(bins []Bin, latest map[string]Reading) []BinSummary {
	out := make([]BinSummary, 0, len(bins))
	for _, b := range bins {
		s := BinSummary{
			ID:        b.ID,
			Location:  b.LocationName,
			Latitude:  b.Latitude,
			Longitude: b.Longitude,
		}
		if r, ok := latest[b.ID]; ok {
			s.Fullness = r.Fullness
			s.Weight = r.Weight
			at := r.RecordedAt
			s.LastUpdated = &at
		}
		s.Status = ClassifyStatus(s.Fullness, s.Weight)
		out = append(out, s)
	}
	return out
}

func computeKPIs(bins []BinSummary) KPIs {
	k := KPIs{TotalBins: len(bins)}
	if len(bins) == 0 {
		return k
	}

	var fullnessSum, weightSum float64
	for _, b := range bins {
		switch {
		case b.Fullness >= fullThreshold:
			k.Full++
		case b.Fullness >= halfThreshold:
			k.Half++
		default:
			k.Normal++
		}
		fullnessSum += b.Fullness
		weightSum += b.Weight
	}
	k.AvgFullness = round1(fullnessSum / float64(len(bins)))
	k.AvgWeight = round1(weightSum / float64(len(bins)))
	return k
}

// buildHistogram: tři výseče stejné jako KPI. Bez košů je histogram prázdný.
func buildHistogram(k KPIs) []HistogramBucket {
	if k.TotalBins == 0 {
		return []HistogramBucket{}
	}
	return []HistogramBucket{
		{Name: "Full (≥80%)", Value: k.Full},
		{Name: "Half (40–79%)", Value: k.Half},
		{Name: "Normal (<40%)", Value: k.Normal},
	}
}

// BuildTrend seskupí měření podle celé hodiny (UTC) a spočítá průměrné
// zaplnění. Jeden bod na neprázdnou hodinu, vzestupně podle času.
func BuildTrend(readings []Reading) []TrendPoint {
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)
	for _, r := range readings {
		hour := r.RecordedAt.UTC().Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{}
			buckets[hour] = b
		}
		b.sum += r.Fullness
		b.count++
	}

	trend := make([]TrendPoint, 0, len(buckets))
	for hour, b := range buckets {
		trend = append(trend, TrendPoint{
			Hour:        hour,
			Label:       hour.Format("15:04"),
			AvgFullness: round1(b.sum / float64(b.count)),
		})
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Hour.Before(trend[j].Hour) })
	return trend
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
