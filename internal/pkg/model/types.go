package model

type NumericUnit string

func (u NumericUnit) String() string {
	return string(u)
}

const (
	NumericUnitDegreeC NumericUnit = "°C"
	NumericUnitPercent NumericUnit = "%"
	NumericUnitADC     NumericUnit = "ADC"
)

type ConnectionStatus string

func (s ConnectionStatus) String() string {
	return string(s)
}

const (
	StatusOnline  ConnectionStatus = "online"
	StatusOffline ConnectionStatus = "offline"
)

// Label is the text shown in the dashboard status banner.
func (s ConnectionStatus) Label() string {
	if s == StatusOnline {
		return "Online"
	}
	return "Disconnected"
}

type (
	TextSensor  string
	TextSensorz []TextSensor
)

const (
	SystemStatusTextSensor TextSensor = "system_status"
)

func (t TextSensor) String() string {
	return string(t)
}

func (ts TextSensorz) HasSlug(slug string) bool {
	for _, t := range ts {
		if t.String() == slug {
			return true
		}
	}
	return false
}

// TextSensors are published without a unit of measurement.
var TextSensors TextSensorz = TextSensorz{
	SystemStatusTextSensor,
	TextSensor(Pump),
	TextSensor(Fan),
	TextSensor(LED),
}
