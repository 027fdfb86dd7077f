// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTransmitter struct {
	sent   []aircode.Controller
	repeat uint8
	err    error
}

func (f *fakeTransmitter) TransmitState(_ context.Context, c aircode.Controller, repeat uint8) (link.TransmitResult, error) {
	if f.err != nil {
		return link.TransmitResult{}, f.err
	}
	f.sent = append(f.sent, c)
	f.repeat = repeat
	return link.TransmitResult{Codes: uint64(repeat) * aircode.FrameLength, Duration: 120 * time.Millisecond}, nil
}

// sampleState is the reference state with its known checksum
var sampleState = aircode.Controller{
	Mode:               aircode.ModeCold,
	On:                 true,
	Fan:                aircode.FanLevel2,
	Temperature:        aircode.MustTemperature(24),
	Timer:              aircode.TimerSetting{Enabled: true, HalfHours: 3},
	VSwing:             aircode.SwingOn,
	TemperatureDisplay: aircode.DisplayRoom,
	IFeel:              true,
	WiFi:               true,
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return w, resp
}

func data(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("no data in %v", resp)
	}
	return d
}

func TestHealth(t *testing.T) {
	s := NewServer(Options{Variant: aircode.PackedBytes})
	w, resp := do(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	d := data(t, resp)
	if d["variant"] != "packed" || d["link"] != false {
		t.Errorf("health = %v", d)
	}
}

func TestEncode(t *testing.T) {
	s := NewServer(Options{})

	tests := []struct {
		name         string
		path         string
		wantVariant  string
		wantChecksum float64
	}{
		{"structured default", "/v1/encode", "structured", 13},
		{"packed override", "/v1/encode?variant=packed", "packed", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, s, http.MethodPost, tt.path, statefile.FromController(sampleState))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %v", w.Code, resp)
			}
			d := data(t, resp)
			if d["variant"] != tt.wantVariant {
				t.Errorf("variant = %v", d["variant"])
			}
			codes, _ := d["codes"].(string)
			if len(codes) != aircode.FrameLength || codes[0] != 'S' || codes[36] != 'C' || codes[69] != 'E' {
				t.Errorf("codes = %q", codes)
			}
			if tt.wantChecksum >= 0 && d["checksum"] != tt.wantChecksum {
				t.Errorf("checksum = %v, want %v", d["checksum"], tt.wantChecksum)
			}
		})
	}
}

func TestEncode_DefaultFrameChecksum(t *testing.T) {
	s := NewServer(Options{})
	for _, variant := range []string{"structured", "packed"} {
		_, resp := do(t, s, http.MethodPost, "/v1/encode?variant="+variant, map[string]interface{}{})
		if got := data(t, resp)["checksum"]; got != float64(12) {
			t.Errorf("%s default checksum = %v, want 12", variant, got)
		}
	}
}

func TestEncode_Errors(t *testing.T) {
	s := NewServer(Options{})
	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
	}{
		{"bad json", "/v1/encode", `{"power":`, http.StatusBadRequest},
		{"bad variant", "/v1/encode?variant=nibble", map[string]interface{}{}, http.StatusBadRequest},
		{"bad mode", "/v1/encode", map[string]interface{}{"mode": "arctic"}, http.StatusUnprocessableEntity},
		{"bad temperature", "/v1/encode", map[string]interface{}{"temperature": 40}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, s, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if resp["success"] != false {
				t.Errorf("success = %v", resp["success"])
			}
		})
	}
}

func TestDecode(t *testing.T) {
	s := NewServer(Options{})
	frame := aircode.FormatCodes(sampleState.Encode())

	w, resp := do(t, s, http.MethodPost, "/v1/decode", DecodeRequest{Codes: frame})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", w.Code, resp)
	}
	state, _ := data(t, resp)["state"].(map[string]interface{})
	if state["mode"] != "cold" || state["temperature"] != float64(24) || state["power"] != true {
		t.Errorf("state = %v", state)
	}
}

func TestDecode_Errors(t *testing.T) {
	s := NewServer(Options{})
	good := aircode.FormatCodes(sampleState.Encode())
	badChecksum := []byte(good)
	if badChecksum[65] == '0' {
		badChecksum[65] = '1'
	} else {
		badChecksum[65] = '0'
	}

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantKind   string
	}{
		{"missing codes", map[string]string{}, http.StatusBadRequest, ""},
		{"bad character", DecodeRequest{Codes: "S01X"}, http.StatusBadRequest, ""},
		{"short", DecodeRequest{Codes: good[:40]}, http.StatusUnprocessableEntity, "eof"},
		{"checksum", DecodeRequest{Codes: string(badChecksum)}, http.StatusUnprocessableEntity, "checksum"},
		{"long", DecodeRequest{Codes: good + "0"}, http.StatusUnprocessableEntity, "length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, s, http.MethodPost, "/v1/decode", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%v)", w.Code, tt.wantStatus, resp)
			}
			if tt.wantKind != "" && resp["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %s", resp["kind"], tt.wantKind)
			}
		})
	}
}

func TestTransmit_NoLink(t *testing.T) {
	s := NewServer(Options{})
	w, _ := do(t, s, http.MethodPost, "/v1/transmit", statefile.FromController(sampleState))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestTransmit(t *testing.T) {
	tx := &fakeTransmitter{}
	s := NewServer(Options{Transmitter: tx})

	w, resp := do(t, s, http.MethodPost, "/v1/transmit?repeat=3", statefile.FromController(sampleState))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", w.Code, resp)
	}
	if len(tx.sent) != 1 || tx.sent[0] != sampleState || tx.repeat != 3 {
		t.Errorf("sent %+v repeat %d", tx.sent, tx.repeat)
	}
	d := data(t, resp)
	if d["codes"] != float64(210) || d["duration_ms"] != float64(120) {
		t.Errorf("result = %v", d)
	}
}

func TestTransmit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{"repeat zero", "/v1/transmit?repeat=0", nil, http.StatusBadRequest},
		{"repeat too large", "/v1/transmit?repeat=9", nil, http.StatusBadRequest},
		{"busy", "/v1/transmit", link.ErrTransmitBusy, http.StatusConflict},
		{"timeout", "/v1/transmit", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"closed", "/v1/transmit", link.ErrSessionClosed, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Options{Transmitter: &fakeTransmitter{err: tt.err}})
			w, _ := do(t, s, http.MethodPost, tt.path, statefile.FromController(sampleState))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	tx := &fakeTransmitter{}
	s := NewServer(Options{
		Transmitter: tx,
		Presets: map[string]statefile.Document{
			"night":  {Power: true, Mode: "cool", Temperature: 26, Sleep: true},
			"broken": {Power: true, Mode: "plasma"},
		},
	})

	_, resp := do(t, s, http.MethodGet, "/v1/presets", nil)
	names, _ := resp["data"].([]interface{})
	if len(names) != 2 || names[0] != "broken" || names[1] != "night" {
		t.Errorf("presets = %v", names)
	}

	w, _ := do(t, s, http.MethodPost, "/v1/presets/Night/transmit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(tx.sent) != 1 || !tx.sent[0].Sleep || tx.sent[0].Mode != aircode.ModeCold {
		t.Errorf("sent %+v", tx.sent)
	}

	if w, _ := do(t, s, http.MethodPost, "/v1/presets/day/transmit", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown preset status = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodPost, "/v1/presets/broken/transmit", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid preset status = %d", w.Code)
	}
}
