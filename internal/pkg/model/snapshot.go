package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type HistoryRow struct {
	Reading
	Devices []DeviceState `json:"devices"`
}

// History is ordered oldest first.
type History []HistoryRow

// Tail returns the last n rows, or all of them when n is out of range.
func (h History) Tail(n int) History {
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[len(h)-n:]
}

// Snapshot is everything a single refresh produces. It replaces the previous
// snapshot entirely.
type Snapshot struct {
	ID          uuid.UUID        `json:"id"`
	Status      ConnectionStatus `json:"status"`
	Reading     Reading          `json:"reading"`
	Devices     []DeviceState    `json:"devices"`
	History     History          `json:"history"`
	GeneratedAt time.Time        `json:"generated_at"`
}

type SensorValue struct {
	Slug  string      `json:"slug"`
	Name  string      `json:"name"`
	Value string      `json:"value"`
	Unit  NumericUnit `json:"unit_of_measurement,omitempty"`
}

// Values flattens the current reading, device states and status for sinks
// that publish one value at a time.
func (s *Snapshot) Values() []SensorValue {
	values := []SensorValue{
		{Slug: "ambient_temperature", Name: "Ambient Temperature", Value: formatFloat(s.Reading.AmbientTemperature), Unit: NumericUnitDegreeC},
		{Slug: "ambient_humidity", Name: "Ambient Humidity", Value: formatFloat(s.Reading.AmbientHumidity), Unit: NumericUnitPercent},
		{Slug: "soil_humidity", Name: "Soil Humidity", Value: formatFloat(s.Reading.SoilHumidity), Unit: NumericUnitPercent},
		{Slug: "raw_adc", Name: "Soil Raw Value", Value: strconv.Itoa(s.Reading.RawADC), Unit: NumericUnitADC},
		{Slug: SystemStatusTextSensor.String(), Name: "System Status", Value: s.Status.String()},
	}
	for _, d := range s.Devices {
		values = append(values, SensorValue{Slug: d.Kind.String(), Name: d.Name, Value: d.Label()})
	}
	return values
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
