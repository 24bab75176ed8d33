package stt

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mrsingh-rishi/speech-relay/model"
	"github.com/pkg/errors"
)

//go:generate mockgen -source=stt.go -destination=mock_stt.go -package=stt

// Recognizer opens streaming recognition calls against one backend.
type Recognizer interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Open starts a new streaming call. The stream lives until ctx is
	// cancelled or Close is called.
	Open(ctx context.Context) (Stream, error)
}

// Stream is one bidirectional recognition call. Send and CloseSend may be
// called from a different goroutine than Recv.
type Stream interface {
	// Send sends one request. The first request must carry the config.
	Send(req model.RecognizeRequest) error
	// CloseSend signals that no more requests will be sent.
	CloseSend() error
	// Recv blocks for the next response and returns io.EOF once the
	// backend has finished.
	Recv() (*model.RecognizeResponse, error)
	// Close releases the call and its client.
	Close() error
}

// Credentials is a service account key read once at startup and handed to
// every session's client.
type Credentials struct {
	Path        string
	JSON        []byte
	Type        string
	ProjectID   string
	ClientEmail string
}

// LoadCredentials reads and validates a service account JSON key file.
func LoadCredentials(path string) (Credentials, error) {
	creds := Credentials{Path: path}
	if path == "" {
		return creds, errors.New("stt: credentials file not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, errors.Wrapf(err, "stt: read credentials %s", path)
	}

	var key struct {
		Type        string `json:"type"`
		ProjectID   string `json:"project_id"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return creds, errors.Wrapf(err, "stt: parse credentials %s", path)
	}
	if key.Type == "" {
		return creds, errors.Errorf("stt: credentials %s have no \"type\" field", path)
	}
	if _, ok := googleCredentialsType(key.Type); !ok {
		return creds, errors.Errorf("stt: credentials %s have unsupported type %q", path, key.Type)
	}

	creds.JSON = data
	creds.Type = key.Type
	creds.ProjectID = key.ProjectID
	creds.ClientEmail = key.ClientEmail
	return creds, nil
}
