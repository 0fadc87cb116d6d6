package main

import (
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/nixcodex/ls9/sdk/contracts"
)

func TestParseAddress(t *testing.T) {
	schema := contracts.DefaultSchema()
	schema[53] = contracts.ParamDef{Name: "mute", Kind: contracts.KindBool}

	tests := []struct {
		in      string
		want    contracts.Address
		wantErr error
	}{
		{in: "51/0/3", want: contracts.Address{Element: 51, Channel: 3}},
		{in: "148:1:12", want: contracts.Address{Element: 148, Index: 1, Channel: 12}},
		{in: "fader.0.7", want: contracts.Address{Element: 51, Channel: 7}},
		{in: "MUTE/0/1", want: contracts.Address{Element: 53, Channel: 1}},
		{in: "51/0", wantErr: contracts.ErrInvalidAddress},
		{in: "pan/0/1", wantErr: contracts.ErrInvalidAddress},
		{in: "51/x/1", wantErr: contracts.ErrInvalidAddress},
		{in: "51/0/y", wantErr: contracts.ErrInvalidAddress},
		{in: "51/0/16384", wantErr: contracts.ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddress(tt.in, schema)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("parseAddress(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAddress(%q) error = %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseAddress(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		kind    contracts.Kind
		want    contracts.Value
		wantErr bool
	}{
		{in: "-1000", kind: contracts.KindInteger, want: contracts.IntValue(-1000)},
		{in: "on", kind: contracts.KindBool, want: contracts.BoolValue(true)},
		{in: "Off", kind: contracts.KindBool, want: contracts.BoolValue(false)},
		{in: "1", kind: contracts.KindBool, want: contracts.BoolValue(true)},
		{in: "4", kind: contracts.KindEnum, want: contracts.EnumValue(4)},
		{in: "on", kind: contracts.KindInteger, wantErr: true},
		{in: "2147483648", kind: contracts.KindInteger, wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseValue(tt.in, tt.kind)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseValue(%q, %s) error = %v, wantErr %v", tt.in, tt.kind, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseValue(%q, %s) = %v, want %v", tt.in, tt.kind, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	color.NoColor = true
	tests := []struct {
		v    contracts.Value
		want string
	}{
		{contracts.BoolValue(true), "on"},
		{contracts.BoolValue(false), "off"},
		{contracts.IntValue(-42), "-42"},
		{contracts.EnumValue(3), "#3"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.v); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestSchemaOf(t *testing.T) {
	if got := schemaOf(nil); got.Lookup(contracts.ElementFader).Name != "fader" {
		t.Errorf("schemaOf(nil) = %v", got)
	}
	got := schemaOf([]contracts.Option{contracts.WithParameter(53, contracts.ParamDef{Name: "mute", Kind: contracts.KindBool})})
	if got.Lookup(53).Kind != contracts.KindBool || got.Lookup(contracts.ElementChannelName).Name != "name" {
		t.Errorf("schemaOf() = %v", got)
	}
}
