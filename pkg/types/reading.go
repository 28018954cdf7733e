package types

import (
	"encoding/json"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/port_reader"
	"github.com/NotCoffee418/humidity_monitor/pkg/units"
	"github.com/rs/zerolog/log"
)

type Reading struct {
	// Raw decoded value, may be empty for malformed records
	Value string `json:"value"`

	// Set when Value parses as a humidity percentage
	HumidityPercent *float64 `json:"humidity_percent,omitempty"`

	UpdatedAt string `json:"updated_at"`
	Sequence  uint64 `json:"sequence"`
}

// ReadingFromSnapshot returns nil until a value has been published.
func ReadingFromSnapshot(snap port_reader.Snapshot) *Reading {
	if snap.Sequence == 0 {
		return nil
	}
	reading := &Reading{
		Value:     snap.Value,
		UpdatedAt: snap.UpdatedAt.Format(time.RFC3339Nano),
		Sequence:  snap.Sequence,
	}
	if pct, ok := units.ParsePercent(snap.Value); ok {
		reading.HumidityPercent = &pct
	}
	return reading
}

func (r *Reading) ToJsonBytes() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal reading")
		return nil
	}
	return data
}

func ReadingFromJsonBytes(data []byte) *Reading {
	var reading Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil
	}
	return &reading
}
