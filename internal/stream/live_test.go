package stream

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxstream/transcribe-gateway/internal/config"
	"github.com/voxstream/transcribe-gateway/internal/engine"
	"github.com/voxstream/transcribe-gateway/internal/loader"
	"github.com/voxstream/transcribe-gateway/internal/notify"
)

type cannedEngine struct {
	result engine.Result
}

func (e *cannedEngine) Transcribe(ctx context.Context, samples []float32, params engine.Params) (engine.Result, error) {
	return e.result, nil
}

func (e *cannedEngine) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	return cfg
}

func pcm16Chunk(n int) string {
	raw := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(0.3 * math.Sin(float64(i)*0.05) * 32767)
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func dialLive(t *testing.T, eng engine.Engine) (*websocket.Conn, func()) {
	t.Helper()
	cfg := testConfig(t)
	coord := loader.NewCoordinator(engine.NewHandle(), 0)
	perform := func(ctx context.Context, n notify.Notifier) (engine.Engine, error) {
		return eng, nil
	}
	server := httptest.NewServer(LiveHandler(cfg, coord, perform))
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("Dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		server.Close()
		t.Fatalf("Expected websocket upgrade, got %d", resp.StatusCode)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

// readUntil collects events until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) (event, []event) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var seen []event
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("Read (after %v): %v", seen, err)
		}
		seen = append(seen, ev)
		if ev.Type == wantType {
			return ev, seen
		}
	}
	t.Fatalf("Never saw %q event, got %v", wantType, seen)
	return event{}, nil
}

func TestLive_Ping(t *testing.T) {
	conn, cleanup := dialLive(t, &cannedEngine{})
	defer cleanup()

	if err := conn.WriteJSON(frame{Type: "ping"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ev, _ := readUntil(t, conn, "pong")
	if ev.Type != "pong" {
		t.Fatalf("Expected pong, got %+v", ev)
	}
}

func TestLive_CaptionFlow(t *testing.T) {
	eng := &cannedEngine{result: engine.Result{
		Text: "hi there",
		Segments: []engine.Segment{
			{Text: "hi there", Start: 0, End: 1.0},
		},
	}}
	conn, cleanup := dialLive(t, eng)
	defer cleanup()

	if err := conn.WriteJSON(frame{Type: "start"}); err != nil {
		t.Fatalf("Write start: %v", err)
	}
	readUntil(t, conn, "status")

	// Default interval is 2s, so one 2.5s chunk forces a window.
	if err := conn.WriteJSON(frame{Type: "chunk", Payload: pcm16Chunk(40000)}); err != nil {
		t.Fatalf("Write chunk: %v", err)
	}
	ev, _ := readUntil(t, conn, "subtitle")
	if ev.Text != "hi there" {
		t.Errorf("Expected subtitle %q, got %q", "hi there", ev.Text)
	}

	if err := conn.WriteJSON(frame{Type: "stop"}); err != nil {
		t.Fatalf("Write stop: %v", err)
	}
}

func TestLive_DictationFlow(t *testing.T) {
	eng := &cannedEngine{result: engine.Result{Text: "dictated sentence"}}
	conn, cleanup := dialLive(t, eng)
	defer cleanup()

	if err := conn.WriteJSON(frame{Type: "start", Mode: "dictation"}); err != nil {
		t.Fatalf("Write start: %v", err)
	}
	if err := conn.WriteJSON(frame{Type: "chunk", Payload: pcm16Chunk(16000)}); err != nil {
		t.Fatalf("Write chunk: %v", err)
	}
	if err := conn.WriteJSON(frame{Type: "stop"}); err != nil {
		t.Fatalf("Write stop: %v", err)
	}

	ev, seen := readUntil(t, conn, "text")
	if ev.Text != "dictated sentence" {
		t.Errorf("Expected dictated text, got %q", ev.Text)
	}
	var sawTranscribing bool
	for _, e := range seen {
		if e.Type == "status" && e.Message == "Transcribing..." {
			sawTranscribing = true
		}
	}
	if !sawTranscribing {
		t.Errorf("Expected Transcribing... status before text, got %v", seen)
	}
}

func TestLive_ResamplesChunks(t *testing.T) {
	eng := &cannedEngine{result: engine.Result{
		Text:     "resampled",
		Segments: []engine.Segment{{Text: "resampled", Start: 0, End: 1.0}},
	}}
	conn, cleanup := dialLive(t, eng)
	defer cleanup()

	if err := conn.WriteJSON(frame{Type: "start"}); err != nil {
		t.Fatalf("Write start: %v", err)
	}
	readUntil(t, conn, "status")

	// 5s at 32kHz downsamples to 2.5s at 16kHz, enough for one window.
	if err := conn.WriteJSON(frame{Type: "chunk", SampleRate: 32000, Payload: pcm16Chunk(160000)}); err != nil {
		t.Fatalf("Write chunk: %v", err)
	}
	ev, _ := readUntil(t, conn, "subtitle")
	if ev.Text != "resampled" {
		t.Errorf("Expected resampled subtitle, got %q", ev.Text)
	}
}

func TestLive_UnknownFrame(t *testing.T) {
	conn, cleanup := dialLive(t, &cannedEngine{})
	defer cleanup()

	if err := conn.WriteJSON(frame{Type: "bogus"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ev, _ := readUntil(t, conn, "status")
	if !strings.HasPrefix(ev.Message, "Error:") {
		t.Errorf("Expected error status for unknown frame, got %+v", ev)
	}
}
