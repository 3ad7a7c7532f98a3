package main

import "time"

// Bin je řádek z tabulky bins.
type Bin struct {
	ID           string
	LocationName string
	Latitude     float64
	Longitude    float64
}

// Reading je řádek z tabulky readings.
type Reading struct {
	BinID      string
	Weight     float64
	Fullness   float64
	RecordedAt time.Time
}

// BinStatus je slovní stav koše podle posledního měření.
type BinStatus string

const (
	StatusCritical BinStatus = "Critical"
	StatusFull     BinStatus = "Full"
	StatusPartial  BinStatus = "Partial"
	StatusActive   BinStatus = "Active"
	StatusNormal   BinStatus = "Normal"
)

// BinSummary: koš + jeho poslední měření v okně. Koš bez měření má nuly
// a LastUpdated = nil.
type BinSummary struct {
	ID          string     `json:"id"`
	Location    string     `json:"location"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Fullness    float64    `json:"fullness"`
	Weight      float64    `json:"weight"`
	LastUpdated *time.Time `json:"last_updated"`
	Status      BinStatus  `json:"status"`
}

// KPIs: Full + Half + Normal == TotalBins vždy.
type KPIs struct {
	TotalBins   int     `json:"total_bins"`
	Full        int     `json:"full"`
	Half        int     `json:"half"`
	Normal      int     `json:"normal"`
	AvgFullness float64 `json:"avg_fullness"`
	AvgWeight   float64 `json:"avg_weight"`
}

// HistogramBucket je jedna výseč koláčového grafu.
type HistogramBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TrendPoint: průměrné zaplnění za jednu celou hodinu (UTC).
type TrendPoint struct {
	Hour        time.Time `json:"hour"`
	Label       string    `json:"time"` // "HH:MM" pro osu X
	AvgFullness float64   `json:"avg_fullness"`
}

// View je kompletní výsledek jednoho výpočtu agregací.
type View struct {
	KPIs       KPIs              `json:"kpis"`
	Histogram  []HistogramBucket `json:"histogram"`
	Trend      []TrendPoint      `json:"trend"`
	Bins       []BinSummary      `json:"bins"`
	ComputedAt time.Time         `json:"computed_at"`
}

// LiveBin je položka live snapshotu, jak ji do Valkey zapisuje bin-ingestor.
type LiveBin struct {
	ID           string    `json:"id"`
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Weight       float64   `json:"weight"`
	Fullness     float64   `json:"fullness"`
	UpdatedAt    time.Time `json:"updated_at"`
	Revision     uint64    `json:"revision"`
}
