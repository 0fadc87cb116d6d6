package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/sdk/contracts"
	"github.com/nixcodex/ls9/sdk/ls9"
)

func main() {
	log := logger.NewZapLogger()

	ports, err := ls9.ListPorts(contracts.WithLogger(log))
	if err != nil || len(ports) == 0 {
		log.Error("No MIDI ports found or error listing ports", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI ports:", ports)

	console, err := ls9.NewConsole(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithPortName(ports[0].Name),
		contracts.WithTimeout(500*time.Millisecond),
		contracts.WithParameter(53, contracts.ParamDef{Name: "mute", Kind: contracts.KindBool}),
	)
	if err != nil {
		log.Error("Failed to open console session", log.Field().Error("error", err))
		return
	}
	defer console.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	name, err := console.ChannelName(ctx, 0)
	if err != nil {
		log.Error("Failed to read channel name", log.Field().Error("error", err))
		return
	}
	fmt.Printf("Channel 1 is %q\n", name)

	fader := contracts.Address{Element: contracts.ElementFader, Channel: 0}
	if err := console.Fade(ctx, fader, 823, 2*time.Second); err != nil {
		log.Error("Fade failed", log.Field().Error("error", err))
	}

	console.Subscribe(func(addr contracts.Address, v contracts.Value) {
		log.Info("Parameter changed",
			log.Field().String("address", addr.String()),
			log.Field().String("value", v.String()),
		)
	})

	fmt.Println("Watching parameter changes... Press Ctrl+C to exit.")
	<-ctx.Done()
}
