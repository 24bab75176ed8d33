package session

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/mrsingh-rishi/speech-relay/audio"
	"github.com/mrsingh-rishi/speech-relay/metrics"
	"github.com/mrsingh-rishi/speech-relay/model"
	"github.com/mrsingh-rishi/speech-relay/output"
	"github.com/mrsingh-rishi/speech-relay/queue"
	"github.com/mrsingh-rishi/speech-relay/stt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Conn is the client side of a session: a WebSocket connection delivering
// binary audio frames and text frames.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Options configures a Session.
type Options struct {
	// Config is sent to the backend as the first request of the stream.
	Config model.StreamConfig
	// QueueDepth bounds the number of audio chunks waiting for the backend.
	// Zero or less means unbounded.
	QueueDepth int
	Metrics    *metrics.Metrics
	Logger     *logrus.Entry
}

// Session bridges one client connection to one backend recognition stream.
// Inbound audio is handed to the backend through a FIFO queue while backend
// responses are relayed to the client as text frames.
type Session struct {
	ID string

	conn    Conn
	client  *output.Client
	rec     stt.Recognizer
	cfg     model.StreamConfig
	audio   *queue.Queue[model.AudioChunk]
	metrics *metrics.Metrics
	log     *logrus.Entry

	state   atomic.Int32
	drained chan struct{}
}

// New creates a session for conn. Nothing runs until Run is called.
func New(conn Conn, rec stt.Recognizer, opts Options) *Session {
	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		ID:      id,
		conn:    conn,
		client:  output.NewClient(conn),
		rec:     rec,
		cfg:     opts.Config,
		audio:   queue.New[model.AudioChunk](opts.QueueDepth),
		metrics: opts.Metrics,
		log:     log.WithFields(logrus.Fields{"session_id": id, "backend": rec.Name()}),
		drained: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	s.log.Debugf("session state %s -> %s", prev, next)
}

// Run drives the session until the backend stream has ended and the client
// has stopped sending. A backend failure is reported to the client as one
// error frame and returned; the client connection is then closed.
func (s *Session) Run(ctx context.Context) error {
	start := time.Now()
	s.metrics.SessionStarted()

	go s.drain()

	err := s.stream(ctx)

	// nobody consumes audio any more; a blocked or later Enqueue must not hang
	s.audio.Close()

	outcome := "drained"
	if err != nil {
		outcome = "errored"
		s.setState(StateErrored)
		s.fail(err)
		if cerr := s.conn.Close(); cerr != nil {
			s.log.WithError(cerr).Debug("close client connection")
		}
	} else {
		s.setState(StateDraining)
	}

	<-s.drained
	s.setState(StateClosed)
	s.metrics.SessionClosed(outcome, time.Since(start))
	s.log.WithField("duration", time.Since(start).Round(time.Millisecond)).Debug("session closed")
	return err
}

// stream opens the backend call and relays its responses until it ends.
func (s *Session) stream(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.rec.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			s.log.WithError(err).Debug("close backend stream")
		}
	}()
	s.setState(StateStreaming)

	var sendErr error
	genDone := make(chan struct{})
	go func() {
		defer close(genDone)
		if err := s.generate(stream); err != nil && ctx.Err() == nil {
			sendErr = err
			cancel()
		}
	}()

	relayErr := s.relay(stream)

	if n := s.audio.Len(); n > 0 {
		s.log.WithField("chunks", n).Debug("dropping audio the backend did not take")
	}
	s.audio.Close()
	cancel()
	<-genDone

	if sendErr != nil {
		return sendErr
	}
	return relayErr
}

// generate sends the stream config followed by every queued audio chunk,
// then closes the send side once the client has finished.
func (s *Session) generate(stream stt.Stream) error {
	if err := stream.Send(model.ConfigRequest(s.cfg)); err != nil {
		return ignoreEOF(err)
	}
	sent := 0
	for {
		chunk, err := s.audio.Dequeue()
		if err == io.EOF {
			s.log.WithField("chunks", sent).Debug("end of audio, closing backend send side")
			return stream.CloseSend()
		}
		if err != nil {
			// backend finished first
			return nil
		}
		if err := stream.Send(model.AudioRequest(chunk)); err != nil {
			return ignoreEOF(err)
		}
		sent++
	}
}

// relay forwards backend responses to the client until the backend ends.
func (s *Session) relay(stream stt.Stream) error {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			s.log.Debug("backend stream ended")
			return nil
		}
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Results) == 0 {
			continue
		}
		result := resp.Results[0]
		if err := s.client.Transcript(result.Transcript(), result.IsFinal); err != nil {
			return &clientError{err: err}
		}
		s.metrics.Transcript(result.IsFinal)
	}
}

// drain reads client frames until the connection closes. Audio goes to the
// queue, text is echoed back.
func (s *Session) drain() {
	defer close(s.drained)
	defer s.audio.CloseWrite()

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("client closed the connection")
			} else {
				s.log.WithError(err).Debug("client read ended")
			}
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			rms := audio.RMS(data)
			s.metrics.AudioFrame(len(data), rms)
			s.log.Tracef("recv %d bytes, rms=%d", len(data), rms)
			if err := s.audio.Enqueue(model.AudioChunk(data)); err != nil {
				s.log.WithError(err).Trace("dropping audio chunk")
			}
		case websocket.TextMessage:
			if err := s.client.Echo(string(data)); err != nil {
				s.log.WithError(err).Debug("echo failed")
				return
			}
			s.metrics.Echo()
		}
	}
}

// fail reports err to the client. Failures writing to the client itself are
// only logged.
func (s *Session) fail(err error) {
	var cerr *clientError
	if errors.As(err, &cerr) {
		s.log.WithError(cerr.err).Warn("client write failed")
		return
	}

	var berr *stt.BackendError
	if !errors.As(err, &berr) {
		berr = &stt.BackendError{Backend: s.rec.Name(), Op: stt.OpRecv, Err: err}
	}
	s.metrics.BackendError(berr.Backend, berr.Code().String())
	s.log.WithError(berr).Error("backend stream failed")
	if werr := s.client.Error(berr.Description()); werr != nil {
		s.log.WithError(werr).Debug("send error frame")
	}
}

type clientError struct {
	err error
}

func (e *clientError) Error() string { return "client write: " + e.err.Error() }

func (e *clientError) Unwrap() error { return e.err }

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
