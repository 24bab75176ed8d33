package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/mrsingh-rishi/speech-relay/model"
	"github.com/mrsingh-rishi/speech-relay/stt"
	"github.com/pkg/errors"
)

var errConnClosed = errors.New("use of closed network connection")

type frame struct {
	typ  int
	data []byte
}

// fakeConn is a client connection driven by the test. Closing in ends the
// inbound stream the way a client close does.
type fakeConn struct {
	in        chan frame
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	out     []string
	written chan string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan frame),
		closed:  make(chan struct{}),
		written: make(chan string, 256),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return f.typ, f.data, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	c.out = append(c.out, string(data))
	c.mu.Unlock()
	c.written <- string(data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sendBinary(data []byte) { c.in <- frame{typ: websocket.BinaryMessage, data: data} }

func (c *fakeConn) sendText(text string) { c.in <- frame{typ: websocket.TextMessage, data: []byte(text)} }

func (c *fakeConn) hangUp() { close(c.in) }

func (c *fakeConn) frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.out...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type recvItem struct {
	resp *model.RecognizeResponse
	err  error
}

// fakeStream records requests and replays responses pushed by the test.
// Closing responses ends the backend stream with io.EOF.
type fakeStream struct {
	ctx       context.Context
	responses chan recvItem
	sendErr   func(model.RecognizeRequest) error

	mu        sync.Mutex
	reqs      []model.RecognizeRequest
	sent      chan model.RecognizeRequest
	closeSend chan struct{}
	csOnce    sync.Once
	csCalls   int
	closed    bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		responses: make(chan recvItem, 64),
		sent:      make(chan model.RecognizeRequest, 1024),
		closeSend: make(chan struct{}),
	}
}

func (s *fakeStream) Send(req model.RecognizeRequest) error {
	if s.sendErr != nil {
		if err := s.sendErr(req); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	s.sent <- req
	return nil
}

func (s *fakeStream) CloseSend() error {
	s.mu.Lock()
	s.csCalls++
	s.mu.Unlock()
	s.csOnce.Do(func() { close(s.closeSend) })
	return nil
}

func (s *fakeStream) Recv() (*model.RecognizeResponse, error) {
	select {
	case item, ok := <-s.responses:
		if !ok {
			return nil, io.EOF
		}
		return item.resp, item.err
	case <-s.ctx.Done():
		return nil, &stt.BackendError{Backend: "fake", Op: stt.OpRecv, Err: s.ctx.Err()}
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) requests() []model.RecognizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.RecognizeRequest(nil), s.reqs...)
}

func (s *fakeStream) audio() [][]byte {
	var out [][]byte
	for _, r := range s.requests() {
		if !r.IsConfig() {
			out = append(out, r.Audio)
		}
	}
	return out
}

// endAfterCloseSend ends the backend once the session closed its send side.
func (s *fakeStream) endAfterCloseSend() {
	go func() {
		<-s.closeSend
		close(s.responses)
	}()
}

type fakeRecognizer struct {
	stream  *fakeStream
	openErr error
}

func (r *fakeRecognizer) Name() string { return "fake" }

func (r *fakeRecognizer) Open(ctx context.Context) (stt.Stream, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.stream.ctx = ctx
	return r.stream, nil
}

func runSession(s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	return done
}

func waitRun(done <-chan error) (error, bool) {
	select {
	case err := <-done:
		return err, true
	case <-time.After(3 * time.Second):
		return nil, false
	}
}

func waitSent(s *fakeStream, n int) bool {
	deadline := time.After(3 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-s.sent:
		case <-deadline:
			return false
		}
	}
	return true
}
