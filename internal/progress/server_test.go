package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/mschirtzinger/yoloprep/internal/yolo"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if server.Addr() == "" {
		t.Fatal("server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}
}

func TestBroadcastToClient(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeHello {
		t.Fatalf("expected hello, got %s", msg.Type)
	}
	if n := server.ClientCount(); n != 1 {
		t.Errorf("expected 1 client, got %d", n)
	}

	server.SplitStarted(yolo.SplitTrain, 42)
	server.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "25_0_1_2017.jpg", ClassID: 0, Outcome: yolo.OutcomeCopied})

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeSplitStarted {
		t.Fatalf("expected split_started, got %s", msg.Type)
	}
	var started SplitStartedData
	if err := json.Unmarshal(msg.Data, &started); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if started.Split != "train" || started.Total != 42 {
		t.Errorf("unexpected split_started payload %+v", started)
	}

	msg = readMessage(t, ctx, conn)
	var sample SampleData
	if err := json.Unmarshal(msg.Data, &sample); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if msg.Type != MessageTypeSample || sample.Outcome != "copied" || sample.Filename != "25_0_1_2017.jpg" {
		t.Errorf("unexpected sample message %s %+v", msg.Type, sample)
	}
}

func TestStopDeliversQueuedEvents(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeHello {
		t.Fatalf("expected hello, got %s", msg.Type)
	}

	for i := 0; i < 50; i++ {
		server.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "25_0_1_2017.jpg", Outcome: yolo.OutcomeCopied})
	}
	server.SplitFinished(yolo.SplitResult{Split: yolo.SplitTrain, Total: 50, Copied: 50})
	server.RunFinished(50, nil)

	stopped := make(chan error, 1)
	go func() { stopped <- server.Stop() }()

	var types []MessageType
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to decode message: %v", err)
		}
		types = append(types, msg.Type)
	}

	if err := <-stopped; err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}
	if len(types) != 52 {
		t.Fatalf("expected 52 events before close, got %d", len(types))
	}
	if types[50] != MessageTypeSplitFinished || types[51] != MessageTypeRunFinished {
		t.Errorf("last events were %s, %s", types[50], types[51])
	}
}

func TestRunFinishedCarriesError(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	readMessage(t, ctx, conn)

	server.RunFinished(0, errors.New("index file missing"))

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeRunFinished {
		t.Fatalf("expected run_finished, got %s", msg.Type)
	}
	var done RunFinishedData
	if err := json.Unmarshal(msg.Data, &done); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if done.Copied != 0 || done.Error != "index file missing" {
		t.Errorf("unexpected run_finished payload %+v", done)
	}
}

func TestStopTwice(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestHealth(t *testing.T) {
	server := startServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health %v", body)
	}
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 2000; i++ {
			server.SplitFinished(yolo.SplitResult{Split: yolo.SplitTest})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked after Stop")
	}
}
