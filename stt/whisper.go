package stt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mrsingh-rishi/speech-relay/audio"
	"github.com/mrsingh-rishi/speech-relay/model"
	"github.com/mrsingh-rishi/speech-relay/queue"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// BackendWhisper is the name of the OpenAI Whisper backend.
const BackendWhisper = "whisper"

// DefaultWhisperWindow is the amount of audio sent per transcription request.
const DefaultWhisperWindow = 5 * time.Second

// WhisperRecognizer transcribes a stream with the OpenAI audio API. Audio is
// cut into fixed windows; every full window is transcribed while the stream
// is still open and yields one final result. The remainder is flushed when
// the send side is closed.
type WhisperRecognizer struct {
	client *openai.Client
	model  string
	window time.Duration
}

var _ Recognizer = (*WhisperRecognizer)(nil)

type whisperSettings struct {
	client openai.ClientConfig
	window time.Duration
}

// WhisperOption configures a WhisperRecognizer.
type WhisperOption func(*whisperSettings)

// WithWhisperBaseURL points the client at another OpenAI-compatible endpoint.
func WithWhisperBaseURL(baseURL string) WhisperOption {
	return func(s *whisperSettings) {
		s.client.BaseURL = baseURL
	}
}

// WithWhisperWindow sets the audio duration per transcription request.
// Values <= 0 keep the default.
func WithWhisperWindow(d time.Duration) WhisperOption {
	return func(s *whisperSettings) {
		if d > 0 {
			s.window = d
		}
	}
}

// NewWhisperRecognizer creates a recognizer for the given API key and model.
func NewWhisperRecognizer(apiKey, model string, opts ...WhisperOption) *WhisperRecognizer {
	settings := whisperSettings{
		client: openai.DefaultConfig(apiKey),
		window: DefaultWhisperWindow,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperRecognizer{
		client: openai.NewClientWithConfig(settings.client),
		model:  model,
		window: settings.window,
	}
}

func (w *WhisperRecognizer) Name() string { return BackendWhisper }

func (w *WhisperRecognizer) Open(ctx context.Context) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &whisperStream{
		ctx:     ctx,
		cancel:  cancel,
		client:  w.client,
		model:   w.model,
		window:  w.window,
		jobs:    queue.New[whisperJob](0),
		results: make(chan whisperResult),
	}
	go s.run()
	return s, nil
}

type whisperJob struct {
	pcm []byte
	cfg model.StreamConfig
}

type whisperResult struct {
	text string
	err  error
}

type whisperStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *openai.Client
	model  string
	window time.Duration

	mu          sync.Mutex
	config      *model.StreamConfig
	windowBytes int
	pcm         bytes.Buffer
	sendEnd     bool

	jobs    *queue.Queue[whisperJob]
	results chan whisperResult
}

func (s *whisperStream) Send(req model.RecognizeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendEnd {
		return errors.Wrap(io.ErrClosedPipe, "stt: send after CloseSend")
	}
	if req.IsConfig() {
		cfg := *req.Config
		s.config = &cfg
		// 16-bit mono
		s.windowBytes = int(s.window.Seconds()*float64(cfg.SampleRateHertz)) * 2
		if s.windowBytes < 2 {
			s.windowBytes = 2
		}
		return nil
	}
	if s.config == nil {
		return errors.New("stt: first request must carry the stream config")
	}
	s.pcm.Write(req.Audio)
	for s.pcm.Len() >= s.windowBytes {
		if err := s.flush(s.windowBytes); err != nil {
			return err
		}
	}
	return nil
}

// flush hands the first n buffered bytes to the transcription worker.
func (s *whisperStream) flush(n int) error {
	pcm := make([]byte, n)
	copy(pcm, s.pcm.Next(n))
	if err := s.jobs.Enqueue(whisperJob{pcm: pcm, cfg: *s.config}); err != nil {
		return newBackendError(BackendWhisper, OpSend, err)
	}
	return nil
}

func (s *whisperStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendEnd {
		return nil
	}
	s.sendEnd = true
	var err error
	if s.config != nil && s.pcm.Len() > 0 {
		err = s.flush(s.pcm.Len())
	}
	s.jobs.CloseWrite()
	return err
}

// run transcribes queued windows in order until the send side is closed or
// a request fails. Windows queued after a failure are dropped by Close.
func (s *whisperStream) run() {
	defer close(s.results)
	for {
		job, err := s.jobs.Dequeue()
		if err != nil {
			return
		}
		text, err := s.transcribe(job)
		select {
		case s.results <- whisperResult{text: text, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *whisperStream) transcribe(job whisperJob) (string, error) {
	wav, err := audio.EncodeWAV(job.pcm, job.cfg.SampleRateHertz, 1)
	if err != nil {
		return "", err
	}
	resp, err := s.client.CreateTranscription(s.ctx, openai.AudioRequest{
		Model:    s.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Language: whisperLanguage(job.cfg.LanguageCode),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// Recv returns one final result per transcribed window. Windows that
// transcribe to nothing are skipped.
func (s *whisperStream) Recv() (*model.RecognizeResponse, error) {
	for {
		select {
		case r, ok := <-s.results:
			if !ok {
				return nil, io.EOF
			}
			if r.err != nil {
				return nil, newBackendError(BackendWhisper, OpTranscribe, r.err)
			}
			if r.text == "" {
				continue
			}
			return &model.RecognizeResponse{
				Results: []model.Result{{
					Alternatives: []model.Alternative{{Transcript: r.text}},
					IsFinal:      true,
				}},
			}, nil
		case <-s.ctx.Done():
			return nil, newBackendError(BackendWhisper, OpRecv, s.ctx.Err())
		}
	}
}

func (s *whisperStream) Close() error {
	s.cancel()
	s.jobs.Close()
	return nil
}

// whisperLanguage maps a BCP-47 tag such as "en-US" to the ISO-639-1 code
// the transcription API expects.
func whisperLanguage(tag string) string {
	lang, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(lang)
}
