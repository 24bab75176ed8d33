package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mrsingh-rishi/speech-relay/audio"
	"github.com/pkg/errors"
)

const sampleRate = 16000

// loadPCM reads a WAV file, or a headerless LINEAR16 file when the data
// has no RIFF header.
func loadPCM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read audio file")
	}
	pcm, info, err := audio.DecodeWAV(data)
	if errors.Is(err, audio.ErrNotWAV) {
		return data, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if info.SampleRate != sampleRate || info.Channels != 1 {
		fmt.Fprintf(os.Stderr, "warning: %s is %d Hz, %d channel(s); the relay expects %d Hz mono\n",
			path, info.SampleRate, info.Channels, sampleRate)
	}
	return pcm, nil
}

func silence(d time.Duration, rate int) []byte {
	n := int(d.Seconds() * float64(rate))
	return make([]byte, n*2)
}

// chunks splits pcm into frames of at most size bytes.
func chunks(pcm []byte, size int) [][]byte {
	var out [][]byte
	for len(pcm) > 0 {
		n := size
		if n > len(pcm) {
			n = len(pcm)
		}
		out = append(out, pcm[:n])
		pcm = pcm[n:]
	}
	return out
}

func stream(ctx context.Context, out io.Writer, opts *options, header http.Header, pcm []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.url, header)
	if err != nil {
		if resp != nil {
			return errors.Wrapf(err, "dial %s: HTTP %d", opts.url, resp.StatusCode)
		}
		return errors.Wrapf(err, "dial %s", opts.url)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Fprintln(out, string(msg))
		}
	}()

	if opts.text != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(opts.text)); err != nil {
			return errors.Wrap(err, "send text")
		}
	}

	frames := chunks(pcm, opts.chunk)
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for i, frame := range frames {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return errors.Wrapf(err, "send frame %d", i)
		}
		if i == len(frames)-1 {
			break
		}
		select {
		case <-ticker.C:
		case <-done:
			return errors.New("relay closed the connection")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-time.After(opts.linger):
	case <-done:
		return nil
	case <-ctx.Done():
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}
