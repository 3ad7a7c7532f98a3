package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedPayload označuje zprávu, kterou nejde převést na Reading.
// Volající ji zaloguje a zahodí, odběr běží dál.
var ErrMalformedPayload = errors.New("neplatný payload")

// wireReading odpovídá JSONu, který posílají senzory na topic smartbin/data.
// Měření jsou pointery, abychom poznali chybějící klíč od nuly.
type wireReading struct {
	ID           string   `json:"id"`
	LocationName string   `json:"location_name"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Weight       *float64 `json:"weight"`
	Fullness     *float64 `json:"fullness"`
}

// DecodeReading převede surový payload z brokeru na Reading.
// receivedAt se uloží do Reading jako čas příjmu.
func DecodeReading(payload []byte, receivedAt time.Time) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	id := strings.TrimSpace(w.ID)
	if id == "" {
		return Reading{}, fmt.Errorf("%w: chybí id koše", ErrMalformedPayload)
	}
	if w.Weight == nil {
		return Reading{}, fmt.Errorf("%w: chybí weight (koš %s)", ErrMalformedPayload, id)
	}
	if w.Fullness == nil {
		return Reading{}, fmt.Errorf("%w: chybí fullness (koš %s)", ErrMalformedPayload, id)
	}

	return Reading{
		BinID:        id,
		LocationName: w.LocationName,
		Latitude:     w.Latitude,
		Longitude:    w.Longitude,
		Weight:       *w.Weight,
		Fullness:     *w.Fullness,
		ReceivedAt:   receivedAt.UTC(),
	}, nil
}
