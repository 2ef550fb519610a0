package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
	ConfigURL    string
}

type GenericSensor struct {
	Device           Device
	Id               string
	SensorType       string // sensor, binary_sensor
	Name             string
	UniqueId         string
	DeviceClass      string // connectivity, timestamp
	EntityCategory   string // diagnostic, config, nil
	EnabledByDefault *bool
	Icon             string
}

type GenericButton struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

type GenericInputNumber struct {
	Device       Device
	Id           string
	Name         string
	UniqueId     string
	Icon         string
	Max          float64
	Min          float64
	Step         float64
	Mode         string
	InitialValue float64
}
