package main

import (
	"sort"
	"time"
)

// Reading je jeden vzorek telemetrie z koše tak, jak přišel z brokeru.
// Kromě měření nese i metadata koše (název lokace, souřadnice), která
// se použijí jen při prvním výskytu koše.
type Reading struct {
	BinID        string
	LocationName string
	Latitude     float64
	Longitude    float64

	// Weight: hmotnost obsahu v kg.
	Weight float64

	// Fullness: zaplnění v procentech. Hodnotu neořezáváme na 0-100,
	// posíláme dál přesně to, co poslal senzor.
	Fullness float64

	// ReceivedAt: kdy zprávu přijal ingestor (UTC). V DB se čas měření
	// přiřazuje až při zápisu (recorded_at DEFAULT now()).
	ReceivedAt time.Time
}

// BinView je položka live snapshotu. Posílá se konzumentům (Valkey, API).
type BinView struct {
	ID           string    `json:"id"`
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Weight       float64   `json:"weight"`
	Fullness     float64   `json:"fullness"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Revision: verze snapshotu, ve které byla položka naposledy přepsána.
	Revision uint64 `json:"revision"`
}

func (r Reading) view(revision uint64) BinView {
	return BinView{
		ID:           r.BinID,
		LocationName: r.LocationName,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Weight:       r.Weight,
		Fullness:     r.Fullness,
		UpdatedAt:    r.ReceivedAt,
		Revision:     revision,
	}
}

// Snapshot je neměnný obraz live stavu: ID koše -> poslední významné měření.
// Po publikování se mapa bins už nikdy nemění, nový stav = nový Snapshot.
type Snapshot struct {
	bins map[string]BinView

	// Version roste s každou publikací (flush s alespoň jednou změnou, reset).
	Version uint64

	// Generation roste jen při explicitním resetu.
	Generation uint64

	UpdatedAt time.Time
}

func emptySnapshot() *Snapshot {
	return &Snapshot{bins: make(map[string]BinView)}
}

// Get vrací pohled na jeden koš.
func (s *Snapshot) Get(id string) (BinView, bool) {
	v, ok := s.bins[id]
	return v, ok
}

// Len vrací počet košů ve snapshotu.
func (s *Snapshot) Len() int {
	return len(s.bins)
}

// List vrací položky seřazené podle ID (pořadí v mapě je náhodné).
func (s *Snapshot) List() []BinView {
	out := make([]BinView, 0, len(s.bins))
	for _, v := range s.bins {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
