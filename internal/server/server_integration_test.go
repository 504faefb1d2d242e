package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/dataset"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/mode"
	"github.com/ayusman/handsign/internal/store"
)

func TestAPI_TrainingWorkflow(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	p := newTestPipeline(t)
	srv := New(Config{Pipeline: p, Storage: s.Sessions(), Sessions: s.Sessions()})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Store a session and load it
	thumbsUpHand := detector.ThumbsUpLandmarks()
	openPalmHand := detector.OpenPalmLandmarks()
	data, _ := dataset.Encode([]gesture.Example{
		gesture.NewExample(thumbsUpHand.Slice(), gesture.Label{1, 0}),
		gesture.NewExample(openPalmHand.Slice(), gesture.Label{0, 1}),
	})
	if err := s.Sessions().Write(context.Background(), "recorded", data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	resp, err := client.Post(ts.URL+"/api/load", "application/json", bytes.NewBufferString(`{"session":"recorded"}`))
	if err != nil {
		t.Fatalf("POST /api/load error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/load status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 2. Train in the background
	resp, err = client.Post(ts.URL+"/api/train", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/train error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/train status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	// 3. Poll status until training is done
	deadline := time.Now().Add(5 * time.Second)
	var status app.Status
	for {
		resp, err = client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if status.Trained && status.Mode == mode.Idle {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("training did not finish, last status %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.Examples != 2 || status.Report == nil {
		t.Errorf("unexpected status after training %+v", status)
	}

	// 4. The stored session can be exported
	resp, _ = client.Get(ts.URL + "/api/sessions/recorded")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/sessions/recorded status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestAPI_EventsWebSocket(t *testing.T) {
	p := newTestPipeline(t)
	ts := httptest.NewServer(New(Config{Pipeline: p}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var status app.Status
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if status.Mode != mode.Idle {
		t.Errorf("initial mode = %s, want idle", status.Mode)
	}

	if err := p.StartCollect(); err != nil {
		t.Fatalf("StartCollect() error = %v", err)
	}
	for status.Mode != mode.Collecting {
		if err := conn.ReadJSON(&status); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
	}

	// Teardown ends the stream with a close frame.
	p.Teardown()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("expected going-away close, got %v", err)
			}
			break
		}
	}
}
