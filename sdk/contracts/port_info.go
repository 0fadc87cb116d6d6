package contracts

// PortInfo contains information about a MIDI port pair exposed by a driver.
type PortInfo struct {
	Name         string // Port name, used to bind a session.
	Manufacturer string // Port manufacturer, when the backend reports one.
	EntityName   string // Name of the entity to which the port belongs.
	Input        bool   // An input endpoint with this name exists.
	Output       bool   // An output endpoint with this name exists.
}

// Duplex reports whether the port can be used for a request/reply session.
func (p PortInfo) Duplex() bool {
	return p.Input && p.Output
}
