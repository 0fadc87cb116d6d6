package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/nixcodex/ls9/sdk/contracts"
)

var (
	labelText = color.New(color.FgCyan, color.Bold).SprintFunc()
	valueText = color.RGB(128, 216, 236).SprintFunc()
	boolText  = color.New(color.FgYellow).SprintFunc()
	dimText   = color.New(color.FgHiBlack).SprintFunc()
	errorText = color.New(color.FgRed, color.Bold).SprintFunc()
)

// setupColor disables colours when asked to or when stdout is not a terminal.
func setupColor(disable bool) {
	f := os.Stdout
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	color.NoColor = disable || !tty || os.Getenv("NO_COLOR") != ""
}

func formatAddress(schema contracts.Schema, addr contracts.Address) string {
	name := schema.Lookup(addr.Element).Name
	return fmt.Sprintf("%s %s", labelText(name), dimText(addr.String()))
}

func formatValue(v contracts.Value) string {
	if v.Kind() == contracts.KindBool {
		if v.Bool() {
			return boolText("on")
		}
		return boolText("off")
	}
	return valueText(v.String())
}

func printParam(schema contracts.Schema, addr contracts.Address, v contracts.Value) {
	fmt.Printf("%s = %s\n", formatAddress(schema, addr), formatValue(v))
}
