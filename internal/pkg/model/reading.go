package model

import "time"

// Range is an inclusive interval a generated value must fall into.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

var (
	AmbientTemperatureRange = Range{Min: 20, Max: 30}
	AmbientHumidityRange    = Range{Min: 40, Max: 70}
	SoilHumidityRange       = Range{Min: 30, Max: 80}
)

const (
	RawADCMin = 300
	RawADCMax = 900
)

// Reading is one synthetic sample of the environment and soil sensors.
type Reading struct {
	Timestamp          time.Time `json:"timestamp"`
	AmbientTemperature float64   `json:"ambient_temperature_c"`
	AmbientHumidity    float64   `json:"ambient_humidity_pct"`
	SoilHumidity       float64   `json:"soil_humidity_pct"`
	RawADC             int       `json:"raw_adc"`
}

// Valid reports whether every value lies within its sensor range.
func (r Reading) Valid() bool {
	return AmbientTemperatureRange.Contains(r.AmbientTemperature) &&
		AmbientHumidityRange.Contains(r.AmbientHumidity) &&
		SoilHumidityRange.Contains(r.SoilHumidity) &&
		r.RawADC >= RawADCMin && r.RawADC <= RawADCMax
}
