// Package main is the entry point for the ls9ctl CLI
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nixcodex/ls9/internal/config"
	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/sdk/contracts"
	"github.com/nixcodex/ls9/sdk/ls9"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	portName   string
	backend    string
	timeout    time.Duration
	retries    int
	device     uint8
	checksum   string
	writeAck   string
	logLevel   string
	virtual    bool
	noColor    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err.Error()))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ls9ctl",
	Short: "Control a Yamaha LS9 console over MIDI",
	Long: `ls9ctl reads and writes Yamaha LS9 mixing console parameters using
parameter change and parameter request SysEx messages.

Parameters are addressed as element/index/channel. Elements can be given by
number or by a name from the parameter schema.

Examples:
  ls9ctl ports
  ls9ctl get fader/0/3
  ls9ctl set 51/0/3 -- -1000
  ls9ctl fade fader/0/3 1000 --duration 2s
  ls9ctl name 12
  ls9ctl watch
  ls9ctl serve --listen :8080`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupColor(noColor)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&portName, "port", "p", "", "MIDI port name (substring match)")
	flags.StringVarP(&backend, "backend", "b", "", "MIDI backend: coremidi, winmm, rtmidi or sim")
	flags.DurationVarP(&timeout, "timeout", "t", ls9.DefaultTimeout, "Per-request timeout")
	flags.IntVarP(&retries, "retries", "r", ls9.DefaultMaxRetries, "Retries after a timeout")
	flags.Uint8VarP(&device, "device", "d", 0, "SysEx device number (0-15)")
	flags.StringVar(&checksum, "checksum", "none", "Frame checksum: none, additive or xor")
	flags.StringVar(&writeAck, "write-ack", "echo", "Write completion: echo or none")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.BoolVar(&virtual, "virtual", false, "Publish a virtual port instead of opening one")
	flags.BoolVar(&noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(fadeCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// sessionOptions merges the configuration file with the flags given on the
// command line. Flags win.
func sessionOptions(cmd *cobra.Command) ([]contracts.Option, error) {
	var opts []contracts.Option
	if configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		fileOpts, err := f.Options()
		if err != nil {
			return nil, err
		}
		opts = append(opts, fileOpts...)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		opts = append(opts, contracts.WithPortName(portName))
	}
	if flags.Changed("backend") {
		opts = append(opts, contracts.WithBackend(backend))
	}
	if flags.Changed("timeout") {
		opts = append(opts, contracts.WithTimeout(timeout))
	}
	if flags.Changed("retries") {
		opts = append(opts, contracts.WithMaxRetries(retries))
	}
	if flags.Changed("device") {
		opts = append(opts, contracts.WithDeviceNumber(device))
	}
	if flags.Changed("checksum") {
		c, err := contracts.ParseChecksumPolicy(checksum)
		if err != nil {
			return nil, err
		}
		opts = append(opts, contracts.WithChecksum(c))
	}
	if flags.Changed("write-ack") {
		w, err := contracts.ParseWriteAck(writeAck)
		if err != nil {
			return nil, err
		}
		opts = append(opts, contracts.WithWriteAck(w))
	}
	if flags.Changed("virtual") {
		opts = append(opts, contracts.WithVirtualPort(virtual))
	}
	if flags.Changed("log-level") || configPath == "" {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, contracts.WithLogLevel(level))
	}
	return opts, nil
}

// schemaOf returns the parameter schema opts resolve to.
func schemaOf(opts []contracts.Option) contracts.Schema {
	var o contracts.ClientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.Schema == nil {
		return contracts.DefaultSchema()
	}
	return o.Schema
}

func openConsole(cmd *cobra.Command) (contracts.Console, contracts.Schema, error) {
	opts, err := sessionOptions(cmd)
	if err != nil {
		return nil, nil, err
	}
	console, err := ls9.NewConsole(opts...)
	if err != nil {
		return nil, nil, err
	}
	return console, schemaOf(opts), nil
}
