package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mrsingh-rishi/speech-relay/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	frames := chunks(make([]byte, 7000), 3200)
	require.Len(t, frames, 3)
	assert.Len(t, frames[0], 3200)
	assert.Len(t, frames[1], 3200)
	assert.Len(t, frames[2], 600)

	assert.Empty(t, chunks(nil, 3200))
}

func TestSilence(t *testing.T) {
	assert.Len(t, silence(time.Second, 16000), 32000)
	assert.Len(t, silence(100*time.Millisecond, 16000), 3200)
}

func TestLoadPCM(t *testing.T) {
	dir := t.TempDir()
	pcm := bytes.Repeat([]byte{0x10, 0x00}, 800)

	wav, err := audio.EncodeWAV(pcm, 16000, 1)
	require.NoError(t, err)
	wavPath := filepath.Join(dir, "a.wav")
	require.NoError(t, os.WriteFile(wavPath, wav, 0o644))

	got, err := loadPCM(wavPath)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	rawPath := filepath.Join(dir, "a.pcm")
	require.NoError(t, os.WriteFile(rawPath, pcm, 0o644))
	got, err = loadPCM(rawPath)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	_, err = loadPCM(filepath.Join(dir, "missing.wav"))
	assert.Error(t, err)
}

// relayStub echoes text frames and reports the audio byte count once want
// bytes have arrived.
func relayStub(t *testing.T, want int) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		total := 0
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch mt {
			case websocket.TextMessage:
				_ = conn.WriteMessage(websocket.TextMessage, []byte("[echo] "+string(data)))
			case websocket.BinaryMessage:
				before := total
				total += len(data)
				if before < want && total >= want {
					_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("[final] %d bytes", total)))
				}
			}
		}
	}))
}

func TestStream(t *testing.T) {
	srv := relayStub(t, 8000)
	defer srv.Close()

	var out bytes.Buffer
	opts := &options{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/audio",
		text:     "hello",
		chunk:    3200,
		interval: time.Millisecond,
		linger:   200 * time.Millisecond,
	}
	header := http.Header{"Authorization": {"Bearer tok"}}

	err := stream(context.Background(), &out, opts, header, make([]byte, 8000))
	require.NoError(t, err)
	assert.Equal(t, "[echo] hello\n[final] 8000 bytes\n", out.String())
}

func TestStream_DialFailure(t *testing.T) {
	opts := &options{url: "ws://127.0.0.1:1/audio", chunk: 3200, interval: time.Millisecond}
	err := stream(context.Background(), &bytes.Buffer{}, opts, nil, make([]byte, 10))
	assert.Error(t, err)
}

func TestRootCmd_RequiresInput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestRootCmd_RejectsBadPacing(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero interval", []string{"--silence", "1s", "--interval", "0s"}, "--interval must be positive"},
		{"negative interval", []string{"--silence", "1s", "--interval", "-5ms"}, "--interval must be positive"},
		{"zero chunk", []string{"--silence", "1s", "--chunk", "0"}, "--chunk must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
