package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/internal/midi/midisim"
	"github.com/nixcodex/ls9/internal/sysex"
	"github.com/nixcodex/ls9/sdk/contracts"
	"github.com/nixcodex/ls9/sdk/ls9"
	"go.uber.org/zap"
)

var (
	fader = contracts.Address{Element: contracts.ElementFader, Channel: 5}
	mute  = contracts.Address{Element: 53, Channel: 5}
)

func newModel(t *testing.T) (Model, *midisim.Console) {
	t.Helper()
	schema := contracts.DefaultSchema()
	schema[contracts.ElementFader] = contracts.ParamDef{Name: "fader", Kind: contracts.KindInteger, Min: -32768, Max: 1000}
	schema[53] = contracts.ParamDef{Name: "mute", Kind: contracts.KindBool}

	sim := midisim.New("LS9", midisim.WithCodec(sysex.New(sysex.WithSchema(schema))))
	console, err := ls9.Open(midisim.NewDriver(sim),
		contracts.WithLogger(logger.NewFromZap(zap.NewNop())),
		contracts.WithTimeout(200*time.Millisecond),
		contracts.WithParameter(contracts.ElementFader, schema[contracts.ElementFader]),
		contracts.WithParameter(53, schema[53]),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	m, unsubscribe := New(console, schema)
	t.Cleanup(func() {
		unsubscribe()
		console.Close()
	})
	return m, sim
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRecordKeepsRowsOrdered(t *testing.T) {
	m, _ := newModel(t)
	now := time.Now()

	m, _ = update(t, m, changeMsg{addr: mute, value: contracts.BoolValue(true), at: now})
	m, _ = update(t, m, changeMsg{addr: fader, value: contracts.IntValue(10), at: now})
	m, _ = update(t, m, changeMsg{addr: fader, value: contracts.IntValue(20), at: now})

	if len(m.rows) != 2 {
		t.Fatalf("rows = %+v, want 2", m.rows)
	}
	if m.rows[0].addr != fader || m.rows[0].value.Int() != 20 || m.rows[0].count != 2 {
		t.Errorf("rows[0] = %+v", m.rows[0])
	}
	if m.rows[1].addr != mute {
		t.Errorf("rows[1] = %+v", m.rows[1])
	}
	// The mute row was selected first and stays selected.
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1", m.selected)
	}
}

func TestSelection(t *testing.T) {
	m, _ := newModel(t)
	m, _ = update(t, m, changeMsg{addr: fader, value: contracts.IntValue(0)})
	m, _ = update(t, m, changeMsg{addr: mute, value: contracts.BoolValue(false)})

	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key("down"))
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1", m.selected)
	}
	m, _ = update(t, m, key("up"))
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
	m, _ = update(t, m, key("c"))
	if len(m.rows) != 0 || m.selected != 0 {
		t.Errorf("after clear rows = %d, selected = %d", len(m.rows), m.selected)
	}
}

func TestNudgeWritesClampedValue(t *testing.T) {
	m, sim := newModel(t)
	m, _ = update(t, m, changeMsg{addr: fader, value: contracts.IntValue(995)})

	_, cmd := update(t, m, key("+"))
	if cmd == nil {
		t.Fatal("nudge returned no command")
	}
	done, ok := cmd().(writeDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("write result = %+v", done)
	}
	if v, _ := sim.Value(fader); v.Int() != 1000 {
		t.Errorf("console value = %v, want 1000", v)
	}
}

func TestToggle(t *testing.T) {
	m, sim := newModel(t)
	m, _ = update(t, m, changeMsg{addr: mute, value: contracts.BoolValue(false)})

	_, cmd := update(t, m, key(" "))
	if cmd == nil {
		t.Fatal("toggle returned no command")
	}
	if done := cmd().(writeDoneMsg); done.err != nil {
		t.Fatalf("write error = %v", done.err)
	}
	if v, _ := sim.Value(mute); !v.Bool() {
		t.Errorf("console value = %v, want true", v)
	}

	// Nudging a boolean does nothing.
	if _, cmd := update(t, m, key("+")); cmd != nil {
		t.Error("nudge on bool returned a command")
	}
}

func TestChangeFromConsoleReachesModel(t *testing.T) {
	m, sim := newModel(t)
	if err := sim.Touch(fader, contracts.IntValue(-300)); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	msg := make(chan tea.Msg, 1)
	go func() { msg <- m.waitForChange()() }()
	select {
	case got := <-msg:
		change, ok := got.(changeMsg)
		if !ok || change.addr != fader || change.value.Int() != -300 {
			t.Errorf("message = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}
}

func TestView(t *testing.T) {
	m, _ := newModel(t)
	if v := m.View(); !strings.Contains(v, "Waiting for parameter changes") {
		t.Errorf("empty view = %q", v)
	}

	m, _ = update(t, m, changeMsg{addr: fader, value: contracts.IntValue(-42), at: time.Now()})
	m, _ = update(t, m, writeDoneMsg{addr: fader, err: contracts.ErrTimedOut})
	v := m.View()
	for _, want := range []string{"fader", "-42", "request timed out"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t)
	_, cmd := update(t, m, key("q"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
