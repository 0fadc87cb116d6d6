package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nixcodex/ls9/internal/api"
	"github.com/nixcodex/ls9/internal/config"
	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/internal/tui"
	"github.com/nixcodex/ls9/sdk/contracts"
	"github.com/nixcodex/ls9/sdk/ls9"
	"github.com/spf13/cobra"
)

var (
	fadeDuration time.Duration
	listenAddr   string
	watchTUI     bool
	watchOnce    bool
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports of the selected backend",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var getCmd = &cobra.Command{
	Use:   "get <element/index/channel>",
	Short: "Read a parameter",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <element/index/channel> <value>",
	Short: "Write a parameter",
	Long:  `Writes a parameter and waits for the console to echo it. Use -- before negative values.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runSet,
}

var fadeCmd = &cobra.Command{
	Use:   "fade <element/index/channel> <target>",
	Short: "Fade an integer parameter to a target",
	Args:  cobra.ExactArgs(2),
	RunE:  runFade,
}

var nameCmd = &cobra.Command{
	Use:   "name <channel>",
	Short: "Read a channel name",
	Args:  cobra.ExactArgs(1),
	RunE:  runName,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print parameter changes as they happen",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	fadeCmd.Flags().DurationVar(&fadeDuration, "duration", time.Second, "Fade duration")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "HTTP listen address")
	watchCmd.Flags().BoolVar(&watchTUI, "tui", false, "Interactive monitor")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Exit after the first change")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPorts(cmd *cobra.Command, args []string) error {
	opts, err := sessionOptions(cmd)
	if err != nil {
		return err
	}
	ports, err := ls9.ListPorts(opts...)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println(dimText("no MIDI ports found"))
		return nil
	}
	for _, p := range ports {
		dir := ""
		if p.Input {
			dir += "in"
		}
		if p.Output {
			if dir != "" {
				dir += "/"
			}
			dir += "out"
		}
		fmt.Printf("%s  %s\n", labelText(p.Name), dimText(dir))
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	console, schema, err := openConsole(cmd)
	if err != nil {
		return err
	}
	defer console.Close()

	addr, err := parseAddress(args[0], schema)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	v, err := console.Read(ctx, addr)
	if err != nil {
		return err
	}
	printParam(schema, addr, v)
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	console, schema, err := openConsole(cmd)
	if err != nil {
		return err
	}
	defer console.Close()

	addr, err := parseAddress(args[0], schema)
	if err != nil {
		return err
	}
	v, err := parseValue(args[1], schema.Lookup(addr.Element).Kind)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := console.Write(ctx, addr, v); err != nil {
		return err
	}
	printParam(schema, addr, v)
	return nil
}

func runFade(cmd *cobra.Command, args []string) error {
	console, schema, err := openConsole(cmd)
	if err != nil {
		return err
	}
	defer console.Close()

	addr, err := parseAddress(args[0], schema)
	if err != nil {
		return err
	}
	target, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: target %q", contracts.ErrInvalidValue, args[1])
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := console.Fade(ctx, addr, int32(target), fadeDuration); err != nil {
		return err
	}
	printParam(schema, addr, contracts.IntValue(int32(target)))
	return nil
}

func runName(cmd *cobra.Command, args []string) error {
	channel, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: channel %q", contracts.ErrInvalidAddress, args[0])
	}
	console, _, err := openConsole(cmd)
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := signalContext()
	defer cancel()

	name, err := console.ChannelName(ctx, channel)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", labelText(fmt.Sprintf("ch %d", channel)), valueText(strconv.Quote(name)))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	console, schema, err := openConsole(cmd)
	if err != nil {
		return err
	}
	defer console.Close()

	if watchTUI {
		return tui.Run(console, schema)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if watchOnce {
		addr, err := console.NextParamTouched(ctx)
		if err != nil {
			return err
		}
		fmt.Println(formatAddress(schema, addr))
		return nil
	}

	unsubscribe := console.Subscribe(func(addr contracts.Address, v contracts.Value) {
		printParam(schema, addr, v)
	})
	defer unsubscribe()

	fmt.Println(dimText("watching for parameter changes, press ctrl+c to stop"))
	<-ctx.Done()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	opts, err := sessionOptions(cmd)
	if err != nil {
		return err
	}
	// The server logs through the same logger as the session.
	log := logger.NewZapLogger()
	opts = append([]contracts.Option{contracts.WithLogger(log)}, opts...)

	console, err := ls9.NewConsole(opts...)
	if err != nil {
		return err
	}
	defer console.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("%s %s\n", labelText("listening on"), valueText(listenAddr))
	err = api.NewServer(console, schemaOf(opts), log).Run(ctx, listenAddr)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runConfig(cmd *cobra.Command, args []string) error {
	f := &config.File{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		f = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		f.PortName = portName
	}
	if flags.Changed("backend") {
		f.Backend = backend
	}
	if flags.Changed("timeout") || f.TimeoutMs == 0 {
		f.TimeoutMs = int(timeout / time.Millisecond)
	}
	if flags.Changed("retries") || f.MaxRetries == nil {
		r := retries
		f.MaxRetries = &r
	}
	if flags.Changed("device") {
		f.Device = device
	}
	if flags.Changed("checksum") || f.Checksum == "" {
		f.Checksum = checksum
	}
	if flags.Changed("write-ack") || f.WriteAck == "" {
		f.WriteAck = writeAck
	}
	if flags.Changed("log-level") || f.LogLevel == "" {
		f.LogLevel = logLevel
	}
	if flags.Changed("virtual") {
		f.Virtual = virtual
	}

	if _, err := f.Options(); err != nil {
		return err
	}
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// parseAddress accepts element/index/channel with "/", ":" or "." as the
// separator. The element may be a schema name such as "fader".
func parseAddress(s string, schema contracts.Schema) (contracts.Address, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == ':' || r == '.' })
	if len(parts) != 3 {
		return contracts.Address{}, fmt.Errorf("%w: %q is not element/index/channel", contracts.ErrInvalidAddress, s)
	}

	element, err := strconv.Atoi(parts[0])
	if err != nil {
		element = -1
		for e, def := range schema {
			if strings.EqualFold(def.Name, parts[0]) {
				element = e
				break
			}
		}
		if element < 0 {
			return contracts.Address{}, fmt.Errorf("%w: unknown element %q", contracts.ErrInvalidAddress, parts[0])
		}
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return contracts.Address{}, fmt.Errorf("%w: index %q", contracts.ErrInvalidAddress, parts[1])
	}
	channel, err := strconv.Atoi(parts[2])
	if err != nil {
		return contracts.Address{}, fmt.Errorf("%w: channel %q", contracts.ErrInvalidAddress, parts[2])
	}

	addr := contracts.Address{Element: element, Index: index, Channel: channel}
	return addr, addr.Validate()
}

// parseValue reads an integer, or on/off style words for boolean parameters.
func parseValue(s string, kind contracts.Kind) (contracts.Value, error) {
	if kind == contracts.KindBool {
		switch strings.ToLower(s) {
		case "on", "true", "yes":
			return contracts.BoolValue(true), nil
		case "off", "false", "no":
			return contracts.BoolValue(false), nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return contracts.Value{}, fmt.Errorf("%w: %q is not a 32-bit integer", contracts.ErrInvalidValue, s)
	}
	return contracts.ValueOf(kind, int32(n)), nil
}
