package model

type DeviceKind string

func (k DeviceKind) String() string {
	return string(k)
}

const (
	Pump DeviceKind = "pump"
	Fan  DeviceKind = "fan"
	LED  DeviceKind = "led"
)

// DeviceKinds is the display order of the simulated actuators.
var DeviceKinds = []DeviceKind{Pump, Fan, LED}

var deviceNames = map[DeviceKind]string{
	Pump: "Water Pump",
	Fan:  "Fan",
	LED:  "Temperature LED",
}

func (k DeviceKind) Name() string {
	if name, ok := deviceNames[k]; ok {
		return name
	}
	return string(k)
}

// DeviceState is the on/off status of a simulated actuator.
type DeviceState struct {
	Kind DeviceKind `json:"kind"`
	Name string     `json:"name"`
	On   bool       `json:"is_on"`
}

func (d DeviceState) Label() string {
	if d.On {
		return "On"
	}
	return "Off"
}

// Node is the monitored ESP32 board the dashboard reports for.
type Node struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Name  string `json:"name"`
}
