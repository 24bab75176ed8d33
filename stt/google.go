package stt

import (
	"context"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/mrsingh-rishi/speech-relay/model"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"
)

// BackendGoogle is the name of the Google Cloud Speech-to-Text backend.
const BackendGoogle = "google"

// GoogleRecognizer streams audio to Google Cloud Speech-to-Text v1. Every
// Open builds its own client from the shared credentials.
type GoogleRecognizer struct {
	creds Credentials
	opts  []option.ClientOption
}

var _ Recognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer returns a recognizer authenticating with creds. Extra
// client options are appended after the credentials option.
func NewGoogleRecognizer(creds Credentials, opts ...option.ClientOption) *GoogleRecognizer {
	return &GoogleRecognizer{creds: creds, opts: opts}
}

func (g *GoogleRecognizer) Name() string { return BackendGoogle }

// Open dials the speech service and starts a StreamingRecognize call.
func (g *GoogleRecognizer) Open(ctx context.Context) (Stream, error) {
	opts := make([]option.ClientOption, 0, len(g.opts)+1)
	if len(g.creds.JSON) > 0 {
		credType, ok := googleCredentialsType(g.creds.Type)
		if !ok {
			return nil, newBackendError(BackendGoogle, OpDial,
				errors.Errorf("unsupported credentials type %q", g.creds.Type))
		}
		opts = append(opts, option.WithAuthCredentialsJSON(credType, g.creds.JSON))
	}
	opts = append(opts, g.opts...)

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, newBackendError(BackendGoogle, OpDial, err)
	}
	call, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, newBackendError(BackendGoogle, OpOpen, err)
	}
	return &googleStream{client: client, call: call}, nil
}

// googleCredentialsType maps the "type" field of a key file to the
// credentials type the client library expects.
func googleCredentialsType(t string) (option.CredentialsType, bool) {
	switch t {
	case "service_account":
		return option.ServiceAccount, true
	case "authorized_user":
		return option.AuthorizedUser, true
	case "impersonated_service_account":
		return option.ImpersonatedServiceAccount, true
	case "external_account":
		return option.ExternalAccount, true
	}
	var unknown option.CredentialsType
	return unknown, false
}

type googleStream struct {
	client *speech.Client
	call   speechpb.Speech_StreamingRecognizeClient

	closeOnce sync.Once
	closeErr  error
}

func (s *googleStream) Send(req model.RecognizeRequest) error {
	if err := s.call.Send(toStreamingRequest(req)); err != nil {
		// io.EOF means the server ended the call; Recv reports why.
		if err == io.EOF {
			return err
		}
		return newBackendError(BackendGoogle, OpSend, err)
	}
	return nil
}

func (s *googleStream) CloseSend() error {
	if err := s.call.CloseSend(); err != nil {
		return newBackendError(BackendGoogle, OpSend, err)
	}
	return nil
}

func (s *googleStream) Recv() (*model.RecognizeResponse, error) {
	resp, err := s.call.Recv()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, newBackendError(BackendGoogle, OpRecv, err)
	}
	if resp.GetError() != nil && resp.GetError().GetCode() != 0 {
		return nil, newBackendError(BackendGoogle, OpRecv, status.ErrorProto(resp.GetError()))
	}
	return fromStreamingResponse(resp), nil
}

func (s *googleStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Wrap(s.client.Close(), "stt: close speech client")
	})
	return s.closeErr
}

func toStreamingRequest(req model.RecognizeRequest) *speechpb.StreamingRecognizeRequest {
	if req.IsConfig() {
		return &speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
				StreamingConfig: toStreamingConfig(*req.Config),
			},
		}
	}
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: req.Audio,
		},
	}
}

func toStreamingConfig(cfg model.StreamConfig) *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   toEncoding(cfg.Encoding),
			SampleRateHertz:            int32(cfg.SampleRateHertz),
			AudioChannelCount:          1,
			LanguageCode:               cfg.LanguageCode,
			EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
			Model:                      cfg.Model,
		},
		InterimResults:  cfg.InterimResults,
		SingleUtterance: cfg.SingleUtterance,
	}
}

func toEncoding(enc model.AudioEncoding) speechpb.RecognitionConfig_AudioEncoding {
	switch enc {
	case model.EncodingLinear16:
		return speechpb.RecognitionConfig_LINEAR16
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func fromStreamingResponse(resp *speechpb.StreamingRecognizeResponse) *model.RecognizeResponse {
	out := &model.RecognizeResponse{}
	for _, r := range resp.GetResults() {
		result := model.Result{IsFinal: r.GetIsFinal()}
		for _, alt := range r.GetAlternatives() {
			result.Alternatives = append(result.Alternatives, model.Alternative{
				Transcript: alt.GetTranscript(),
				Confidence: float64(alt.GetConfidence()),
			})
		}
		out.Results = append(out.Results, result)
	}
	return out
}
