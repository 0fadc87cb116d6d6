package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/nixcodex/ls9/internal/logger"
	"github.com/nixcodex/ls9/internal/midi/midisim"
	"github.com/nixcodex/ls9/internal/sysex"
	"github.com/nixcodex/ls9/sdk/contracts"
	"github.com/nixcodex/ls9/sdk/ls9"
	"go.uber.org/zap"
)

const elementMute = 53

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *midisim.Console) {
	t.Helper()
	log := logger.NewFromZap(zap.NewNop())
	schema := contracts.DefaultSchema()
	schema[elementMute] = contracts.ParamDef{Name: "mute", Kind: contracts.KindBool}

	sim := midisim.New("FOH", midisim.WithCodec(sysex.New(sysex.WithSchema(schema))))
	console, err := ls9.Open(midisim.NewDriver(sim),
		contracts.WithLogger(log),
		contracts.WithTimeout(100*time.Millisecond),
		contracts.WithMaxRetries(0),
		contracts.WithParameter(elementMute, schema[elementMute]),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { console.Close() })
	return NewServer(console, schema, log), sim
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		if w := do(t, s, http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestGetParam(t *testing.T) {
	s, sim := newTestServer(t)
	sim.SetValue(contracts.Address{Element: contracts.ElementFader, Channel: 2}, contracts.IntValue(-600))

	w := do(t, s, http.MethodGet, "/api/v1/params/51/0/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	want := ParamResponse{
		Address: "51/0/2",
		Element: 51,
		Channel: 2,
		Name:    "fader",
		Kind:    "integer",
		Value:   -600,
		Display: "-600",
	}
	if diff := cmp.Diff(want, decode[ParamResponse](t, w)); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestPutParam(t *testing.T) {
	s, sim := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		addr contracts.Address
		want contracts.Value
	}{
		{"integer", "/api/v1/params/51/0/7", `{"value": 512}`, contracts.Address{Element: 51, Channel: 7}, contracts.IntValue(512)},
		{"bool", "/api/v1/params/53/0/7", `{"value": true}`, contracts.Address{Element: 53, Channel: 7}, contracts.BoolValue(true)},
		{"bool as number", "/api/v1/params/53/0/8", `{"value": 0}`, contracts.Address{Element: 53, Channel: 8}, contracts.BoolValue(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPut, tt.path, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body)
			}
			if got, ok := sim.Value(tt.addr); !ok || got.Raw() != tt.want.Raw() {
				t.Errorf("console value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"element not a number", http.MethodGet, "/api/v1/params/x/0/1", ""},
		{"address out of range", http.MethodGet, "/api/v1/params/51/0/99999", ""},
		{"missing body", http.MethodPut, "/api/v1/params/51/0/1", ""},
		{"missing value", http.MethodPut, "/api/v1/params/51/0/1", `{}`},
		{"null value", http.MethodPut, "/api/v1/params/51/0/1", `{"value": null}`},
		{"string value", http.MethodPut, "/api/v1/params/51/0/1", `{"value": "loud"}`},
		{"bool for integer", http.MethodPut, "/api/v1/params/51/0/1", `{"value": true}`},
		{"negative duration", http.MethodPost, "/api/v1/params/51/0/1/fade", `{"target": 1, "durationMs": -5}`},
		{"fade of bool", http.MethodPost, "/api/v1/params/53/0/1/fade", `{"target": 1, "durationMs": 10}`},
		{"channel not a number", http.MethodGet, "/api/v1/channels/abc/name", ""},
		{"bad timeout", http.MethodGet, "/api/v1/events/next?timeoutMs=0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body)
			}
		})
	}
}

func TestTimeoutMapsToGatewayTimeout(t *testing.T) {
	s, sim := newTestServer(t)
	sim.SetSilent(true)

	w := do(t, s, http.MethodGet, "/api/v1/params/51/0/1", "")
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestFadeParam(t *testing.T) {
	s, sim := newTestServer(t)
	addr := contracts.Address{Element: contracts.ElementFader, Channel: 3}
	sim.SetValue(addr, contracts.IntValue(0))

	w := do(t, s, http.MethodPost, "/api/v1/params/51/0/3/fade", `{"target": 200, "durationMs": 30}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if v, _ := sim.Value(addr); v.Int() != 200 {
		t.Errorf("console value = %v, want 200", v)
	}
}

func TestChannelName(t *testing.T) {
	s, sim := newTestServer(t)
	sim.SetChannelName(12, "Vox 1")

	w := do(t, s, http.MethodGet, "/api/v1/channels/12/name", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if got := decode[NameResponse](t, w); got != (NameResponse{Channel: 12, Name: "Vox 1"}) {
		t.Errorf("response = %+v", got)
	}
}

func TestNextTouched(t *testing.T) {
	s, sim := newTestServer(t)
	touched := contracts.Address{Element: elementMute, Channel: 9}

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(t, s, http.MethodGet, "/api/v1/events/next?timeoutMs=2000", "") }()

	// Keep touching until the waiter has registered and sees one.
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case w := <-done:
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body)
			}
			got := decode[ParamResponse](t, w)
			if got.Address != touched.String() || got.Name != "mute" {
				t.Errorf("response = %+v", got)
			}
			return
		case <-tick.C:
			if err := sim.Touch(touched, contracts.BoolValue(true)); err != nil {
				t.Fatalf("Touch() error = %v", err)
			}
		}
	}
}

func TestNextTouchedTimesOut(t *testing.T) {
	s, _ := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/api/v1/events/next?timeoutMs=20", ""); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", contracts.ErrInvalidValue), http.StatusBadRequest},
		{fmt.Errorf("x: %w", contracts.ErrInvalidAddress), http.StatusBadRequest},
		{fmt.Errorf("x: %w", contracts.ErrTimedOut), http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{contracts.ErrSessionClosed, http.StatusServiceUnavailable},
		{contracts.ErrTransportWrite, http.StatusBadGateway},
		{contracts.ErrDeviceUnavailable, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSwaggerDoc(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/swagger/doc.json", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "LS9 Control API") {
		t.Errorf("GET /swagger/doc.json = %d %s", w.Code, w.Body)
	}
}
