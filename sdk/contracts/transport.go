package contracts

// Port is an open MIDI input/output pair bound to one console.
type Port interface {
	Send(msg []byte) error         // Sends one complete MIDI message. Failures wrap ErrTransportWrite.
	OnReceive(fn func(msg []byte)) // Registers the listener called once per complete incoming message.
	Close() error                  // Releases the underlying endpoints. Safe to call more than once.
}

// Driver enumerates and opens ports on one MIDI backend.
type Driver interface {
	ListPorts() ([]PortInfo, error)     // Lists all ports the backend can see.
	Open(portName string) (Port, error) // Opens the input and output endpoints named portName.
	Close() error                       // Releases backend resources.
}
