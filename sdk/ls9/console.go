// Package ls9 opens control sessions with Yamaha LS9 mixing consoles.
package ls9

import (
	"fmt"
	"sync"

	"github.com/nixcodex/ls9/internal/session"
	"github.com/nixcodex/ls9/sdk/contracts"
	"go.uber.org/multierr"
)

// NewConsole opens a session with the console on the configured port.
//
// opts ...contracts.Option: A variadic list of option functions to customize the session.
//
// Returns:
//   - contracts.Console: The open session.
//   - error: An error, if the options are invalid or the port cannot be opened.
func NewConsole(opts ...contracts.Option) (contracts.Console, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	driver, err := NewDriver(&options)
	if err != nil {
		return nil, err
	}
	c, err := open(driver, &options)
	if err != nil {
		return nil, multierr.Append(err, driver.Close())
	}
	return c, nil
}

// Open starts a session on a port of driver. The returned console owns the
// driver and closes it on Close.
func Open(driver contracts.Driver, opts ...contracts.Option) (contracts.Console, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	c, err := open(driver, &options)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListPorts lists the ports offered by the configured backend.
func ListPorts(opts ...contracts.Option) ([]contracts.PortInfo, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	driver, err := NewDriver(&options)
	if err != nil {
		return nil, err
	}
	ports, err := driver.ListPorts()
	return ports, multierr.Append(err, driver.Close())
}

func open(driver contracts.Driver, options *contracts.ClientOptions) (*console, error) {
	port, err := driver.Open(options.PortName)
	if err != nil {
		options.Logger.Error("Failed to open MIDI port",
			options.Logger.Field().String("port", options.PortName),
			options.Logger.Field().Error("error", err))
		return nil, fmt.Errorf("opening port %q: %w", options.PortName, err)
	}

	s := session.New(port, newCodec(options), session.Config{
		Timeout:    options.Timeout,
		MaxRetries: options.MaxRetries,
		WriteAck:   options.WriteAck,
		FadeStep:   options.FadeStep,
		BufferSize: options.BufferSize,
		Logger:     options.Logger,
	})
	options.Logger.Info("Console session started",
		options.Logger.Field().String("port", options.PortName),
		options.Logger.Field().Uint8("device", options.DeviceNumber),
		options.Logger.Field().Duration("timeout", options.Timeout),
		options.Logger.Field().Int("maxRetries", options.MaxRetries))
	return &console{Session: s, driver: driver, logger: options.Logger}, nil
}

// console ties a session to the driver that opened its port.
type console struct {
	*session.Session
	driver contracts.Driver
	logger contracts.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ contracts.Console = (*console)(nil)

// Close ends the session and releases the driver.
func (c *console) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = multierr.Combine(c.Session.Close(), c.driver.Close())
		if c.closeErr != nil {
			c.logger.Warn("Console closed with errors", c.logger.Field().Error("error", c.closeErr))
		} else {
			c.logger.Info("Console session closed")
		}
	})
	return c.closeErr
}
