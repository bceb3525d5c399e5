package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newLiveTestServer(t *testing.T, handler func(conn *websocket.Conn)) (string, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != bidiGeneratePath {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") == "" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return wsURL, server.Close
}

// ackSetup reads the client's setup frame and replies with setupComplete.
func ackSetup(conn *websocket.Conn) (map[string]any, error) {
	var setup map[string]any
	if err := conn.ReadJSON(&setup); err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
		return nil, err
	}
	return setup, nil
}

func TestConnect_MissingAPIKey(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), LiveConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
}

func TestConnect_SetupHandshake(t *testing.T) {
	t.Parallel()

	setupCh := make(chan map[string]any, 1)
	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		setup, err := ackSetup(conn)
		if err != nil {
			return
		}
		setupCh <- setup
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	session, err := Connect(ctx, LiveConfig{
		APIKey:            "test-key",
		BaseURL:           serverURL,
		SystemInstruction: "You are helpful.",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer session.Close()

	select {
	case setup := <-setupCh:
		inner, ok := setup["setup"].(map[string]any)
		if !ok {
			t.Fatalf("setup envelope missing: %+v", setup)
		}
		if inner["model"] != "models/"+DefaultLiveModel {
			t.Errorf("model = %v", inner["model"])
		}
		if _, ok := inner["inputAudioTranscription"]; !ok {
			t.Error("inputAudioTranscription missing from setup")
		}
		if _, ok := inner["outputAudioTranscription"]; !ok {
			t.Error("outputAudioTranscription missing from setup")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed setup frame")
	}
}

func TestConnect_RejectsNonSetupFirstFrame(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		var setup map[string]any
		if err := conn.ReadJSON(&setup); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"goAway": map[string]any{"timeLeft": "0s"}})
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Connect(ctx, LiveConfig{APIKey: "test-key", BaseURL: serverURL})
	if err == nil {
		t.Fatal("expected handshake error for non-setupComplete first frame")
	}
}

func TestLiveSession_SendAudioAndEvents(t *testing.T) {
	t.Parallel()

	audioCh := make(chan map[string]any, 1)
	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := ackSetup(conn); err != nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err == nil {
			audioCh <- frame
		}

		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"outputTranscription": map[string]any{"text": "hi there"},
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{"turnComplete": true},
		})
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	session, err := Connect(ctx, LiveConfig{APIKey: "test-key", BaseURL: serverURL})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer session.Close()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if err := session.SendAudio(pcm); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}

	select {
	case frame := <-audioCh:
		input, ok := frame["realtimeInput"].(map[string]any)
		if !ok {
			t.Fatalf("frame = %+v", frame)
		}
		chunks, ok := input["mediaChunks"].([]any)
		if !ok || len(chunks) != 1 {
			t.Fatalf("mediaChunks = %+v", input["mediaChunks"])
		}
		chunk := chunks[0].(map[string]any)
		if chunk["mimeType"] != AudioInputMIMEType {
			t.Errorf("mimeType = %v", chunk["mimeType"])
		}
		if chunk["data"] != base64.StdEncoding.EncodeToString(pcm) {
			t.Errorf("data = %v", chunk["data"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received audio frame")
	}

	var sawTranscript, sawTurnComplete, sawClosed bool
	for event := range session.Events() {
		switch e := event.(type) {
		case ContentEvent:
			if e.Content.OutputTranscription != nil && e.Content.OutputTranscription.Text == "hi there" {
				sawTranscript = true
			}
			if e.Content.TurnComplete {
				sawTurnComplete = true
			}
		case ClosedEvent:
			sawClosed = true
			if e.Err != nil {
				t.Errorf("ClosedEvent.Err = %v, want nil for clean close", e.Err)
			}
		}
	}
	if !sawTranscript || !sawTurnComplete || !sawClosed {
		t.Errorf("transcript=%v turnComplete=%v closed=%v, want all true", sawTranscript, sawTurnComplete, sawClosed)
	}
	if err := session.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestLiveSession_SkipsUnknownFrames(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := ackSetup(conn); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"usageMetadata": map[string]any{"totalTokenCount": 7}})
		_ = conn.WriteJSON(map[string]any{
			"serverContent": map[string]any{
				"outputTranscription": map[string]any{"text": "still here"},
			},
		})
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	session, err := Connect(ctx, LiveConfig{APIKey: "test-key", BaseURL: serverURL})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer session.Close()

	var sawTranscript bool
	for event := range session.Events() {
		switch e := event.(type) {
		case ContentEvent:
			if e.Content.OutputTranscription != nil && e.Content.OutputTranscription.Text == "still here" {
				sawTranscript = true
			}
		case ClosedEvent:
			if e.Err != nil {
				t.Errorf("ClosedEvent.Err = %v, want nil after unrecognized frame", e.Err)
			}
		}
	}
	if !sawTranscript {
		t.Error("content after an unrecognized frame never arrived")
	}
	if err := session.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestLiveSession_SendToolResponse(t *testing.T) {
	t.Parallel()

	responseCh := make(chan map[string]any, 1)
	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := ackSetup(conn); err != nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err == nil {
			responseCh <- frame
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	session, err := Connect(ctx, LiveConfig{APIKey: "test-key", BaseURL: serverURL})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer session.Close()

	err = session.SendToolResponse(FunctionResponse{
		ID:       "fc_1",
		Name:     "googleSearch",
		Response: map[string]any{"output": "results"},
	})
	if err != nil {
		t.Fatalf("SendToolResponse() error = %v", err)
	}

	select {
	case frame := <-responseCh:
		tr, ok := frame["toolResponse"].(map[string]any)
		if !ok {
			t.Fatalf("frame = %+v", frame)
		}
		responses, ok := tr["functionResponses"].([]any)
		if !ok || len(responses) != 1 {
			t.Fatalf("functionResponses = %+v", tr["functionResponses"])
		}
		first := responses[0].(map[string]any)
		if first["id"] != "fc_1" || first["name"] != "googleSearch" {
			t.Errorf("response = %+v", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received tool response")
	}

	for range session.Events() {
	}
}

func TestLiveSession_SendAfterClose(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := ackSetup(conn); err != nil {
			return
		}
		// Hold the connection open until the client closes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer closeServer()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	session, err := Connect(ctx, LiveConfig{APIKey: "test-key", BaseURL: serverURL})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := session.SendAudio([]byte{1}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SendAudio after close = %v, want ErrSessionClosed", err)
	}
	if err := session.SendToolResponse(FunctionResponse{ID: "x"}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SendToolResponse after close = %v, want ErrSessionClosed", err)
	}
}
