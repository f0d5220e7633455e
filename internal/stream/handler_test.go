package stream

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/roman-kulish/sniper-scope/internal/scope"
	"github.com/roman-kulish/sniper-scope/internal/waveform"
)

func newTestServer(t *testing.T, lookup scope.Lookup) (*httptest.Server, *Handler) {
	t.Helper()

	h := NewHandler(lookup)
	mux := http.NewServeMux()
	mux.Handle("GET /ws/scope/{scopeID}", h)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, h
}

func dial(t *testing.T, srv *httptest.Server, scopeID string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scope/" + scopeID
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	c.SetReadLimit(1 << 20)
	t.Cleanup(func() { _ = c.CloseNow() })

	return c
}

func requestUpdate(t *testing.T, c *websocket.Conn, frequency float64) updateResponse {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := wsjson.Write(ctx, c, map[string]float64{"frequency": frequency}); err != nil {
		t.Fatalf("Failed to send update: %v", err)
	}

	var r updateResponse
	if err := wsjson.Read(ctx, c, &r); err != nil {
		t.Fatalf("Failed to read update: %v", err)
	}
	return r
}

func waitForSessions(t *testing.T, h *Handler) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %d sessions to finish", h.Active())
	}
}

// connect with {frequency:1, amplitude:2, phase:0}, request frequency 1
func TestHandler_ZeroPhaseStartsAtZero(t *testing.T) {
	srv, h := newTestServer(t, testScopes)
	c := dial(t, srv, "alpha")

	r := requestUpdate(t, c, 1)

	if r.Message != "Real-time signal update" || r.Frequency != 1 {
		t.Errorf("unexpected response header: %q, %v", r.Message, r.Frequency)
	}
	if len(r.SignalValues) != 1000 || len(r.TimeValues) != 1000 {
		t.Fatalf("expected 1000 samples, got %d/%d", len(r.TimeValues), len(r.SignalValues))
	}
	if r.SignalValues[0] != 0 {
		t.Errorf("expected first sample 0, got %v", r.SignalValues[0])
	}
	if r.TimeValues[0] != 0 || math.Abs(r.TimeValues[999]-0.999) > 1e-12 {
		t.Errorf("unexpected schedule bounds %v..%v", r.TimeValues[0], r.TimeValues[999])
	}

	if err := c.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	waitForSessions(t, h)
}

// connect with {frequency:1, amplitude:1, phase:π/2}, request frequency 0
func TestHandler_ZeroFrequencyIsConstant(t *testing.T) {
	srv, _ := newTestServer(t, testScopes)
	c := dial(t, srv, "beta")

	r := requestUpdate(t, c, 0)
	if r.Frequency != 0 {
		t.Errorf("expected frequency 0, got %v", r.Frequency)
	}
	for i, v := range r.SignalValues {
		if math.Abs(v-1) > 1e-12 {
			t.Fatalf("sample %d = %v, expected 1", i, v)
		}
	}
}

func TestHandler_UnknownScope(t *testing.T) {
	srv, h := newTestServer(t, testScopes)
	c := dial(t, srv, "nope")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var r updateResponse
	if err := wsjson.Read(ctx, c, &r); err != nil {
		t.Fatalf("Failed to read error payload: %v", err)
	}
	if r.Error != "Scope not found" {
		t.Errorf("unexpected payload %+v", r)
	}

	_, _, err := c.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure after the error payload, got %v (%v)", status, err)
	}

	waitForSessions(t, h)
}

func TestHandler_SameRequestIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t, testScopes)
	c := dial(t, srv, "alpha")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var payloads [][]byte
	for i := 0; i < 2; i++ {
		if err := c.Write(ctx, websocket.MessageText, []byte(`{"frequency": 7.25}`)); err != nil {
			t.Fatalf("Failed to send update: %v", err)
		}
		_, p, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("Failed to read update: %v", err)
		}
		payloads = append(payloads, p)
	}

	if !bytes.Equal(payloads[0], payloads[1]) {
		t.Error("identical requests produced different payloads")
	}
}

func TestHandler_MalformedMessageEndsSession(t *testing.T) {
	srv, h := newTestServer(t, testScopes)
	c := dial(t, srv, "alpha")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Write(ctx, websocket.MessageText, []byte(`not json`)); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	_, _, err := c.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusUnsupportedData {
		t.Fatalf("expected unsupported data closure, got %v (%v)", status, err)
	}

	waitForSessions(t, h)
}

func TestHandler_SessionsAreIsolated(t *testing.T) {
	scopes := mapLookup{
		"one": {ID: "one", Frequency: 1, Amplitude: 1, Phase: 0},
		"two": {ID: "two", Frequency: 5, Amplitude: 3, Phase: 1},
	}
	srv, h := newTestServer(t, scopes)

	var wg sync.WaitGroup
	for id, sc := range scopes {
		c := dial(t, srv, id)
		gen := waveform.New(sc.Amplitude, sc.Phase)

		wg.Add(1)
		go func(id string, c *websocket.Conn, gen waveform.Generator, offset float64) {
			defer wg.Done()

			for i := 0; i < 20; i++ {
				f := offset + float64(i)

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := wsjson.Write(ctx, c, map[string]float64{"frequency": f})
				var r updateResponse
				if err == nil {
					err = wsjson.Read(ctx, c, &r)
				}
				cancel()
				if err != nil {
					t.Errorf("%s: exchange %d failed: %v", id, i, err)
					return
				}

				if r.Frequency != f {
					t.Errorf("%s: expected frequency %v, got %v", id, f, r.Frequency)
					return
				}
				want := gen.Batch(f)
				for j := range want.Values {
					if r.SignalValues[j] != want.Values[j] {
						t.Errorf("%s: frequency %v sample %d = %v, want %v", id, f, j, r.SignalValues[j], want.Values[j])
						return
					}
				}
			}

			_ = c.Close(websocket.StatusNormalClosure, "")
		}(id, c, gen, map[string]float64{"one": 100, "two": 200}[id])
	}
	wg.Wait()

	waitForSessions(t, h)
	if n := h.Active(); n != 0 {
		t.Errorf("expected no active sessions, got %d", n)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	h := NewHandler(testScopes, WithOriginPatterns("localhost:5173"))
	mux := http.NewServeMux()
	mux.Handle("GET /ws/scope/{scopeID}", h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scope/alpha"
	for origin, allowed := range map[string]bool{
		"http://localhost:5173": true,
		"http://evil.example":   false,
	} {
		c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{origin}},
		})
		if allowed {
			if err != nil {
				t.Errorf("%s: expected connection, got %v", origin, err)
				continue
			}
			_ = c.CloseNow()
			continue
		}

		if err == nil {
			_ = c.CloseNow()
			t.Errorf("%s: expected rejection", origin)
			continue
		}
		if resp == nil {
			t.Errorf("%s: expected a 403 response, got %v", origin, err)
		} else if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", origin, resp.StatusCode)
		}
	}
}
