package main

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type options struct {
	url      string
	file     string
	silence  time.Duration
	text     string
	token    string
	chunk    int
	interval time.Duration
	linger   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "streamclient",
		Short: "Stream audio to the speech relay and print its replies",
		Long: `Stream 16 kHz mono LINEAR16 audio to the speech relay.

Audio is sent in fixed-size binary frames at a fixed pace, like the
microphone firmware does. Every text frame the relay sends back
([echo], [interim], [final], [error]) is printed on its own line.

Examples:
  streamclient --file speech.wav
  streamclient --file speech.pcm --url ws://10.0.0.2:8765/audio
  streamclient --silence 1s --text "hello"`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.file == "" && opts.silence <= 0 {
				return errors.New("one of --file or --silence is required")
			}
			if opts.chunk <= 0 {
				return errors.Errorf("--chunk must be positive, got %d", opts.chunk)
			}
			if opts.interval <= 0 {
				return errors.Errorf("--interval must be positive, got %s", opts.interval)
			}

			var pcm []byte
			if opts.file != "" {
				data, err := loadPCM(opts.file)
				if err != nil {
					return err
				}
				pcm = data
			} else {
				pcm = silence(opts.silence, sampleRate)
			}

			header := http.Header{}
			if opts.token != "" {
				header.Set("Authorization", "Bearer "+opts.token)
			}
			return stream(cmd.Context(), cmd.OutOrStdout(), opts, header, pcm)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.url, "url", "u", "ws://127.0.0.1:8765/audio", "relay WebSocket URL")
	f.StringVarP(&opts.file, "file", "f", "", "WAV or raw LINEAR16 file to stream")
	f.DurationVar(&opts.silence, "silence", 0, "stream this much silence instead of a file")
	f.StringVarP(&opts.text, "text", "t", "", "text frame to send before the audio")
	f.StringVar(&opts.token, "token", "", "bearer token for the upgrade request")
	f.IntVar(&opts.chunk, "chunk", 3200, "bytes per audio frame")
	f.DurationVar(&opts.interval, "interval", 100*time.Millisecond, "delay between audio frames")
	f.DurationVar(&opts.linger, "linger", 3*time.Second, "how long to wait for replies after the last frame")
	return cmd
}
