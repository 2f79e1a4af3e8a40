package loader

// Device describes where a component is placed and with which precision.
type Device struct {
	Name     string // "cuda" or "cpu"
	DType    string
	Xformers bool
}

// Accelerated reports whether the device is not the CPU.
func (d Device) Accelerated() bool { return d.Name != "" && d.Name != "cpu" }

// CPU returns the host placement used for auxiliary components.
func CPU() Device { return Device{Name: "cpu", DType: "float32"} }

func (d Device) String() string {
	if d.Name == "" {
		return "cpu"
	}
	return d.Name
}
