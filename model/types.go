package model

// AudioChunk represents one inbound binary frame of LINEAR16 audio.
type AudioChunk []byte

// AudioEncoding names the sample encoding sent to the recognizer.
type AudioEncoding string

const (
	// EncodingLinear16 is little-endian 16-bit signed PCM.
	EncodingLinear16 AudioEncoding = "LINEAR16"
)

// StreamConfig is the recognition configuration sent once at the start of a stream.
type StreamConfig struct {
	Encoding                   AudioEncoding
	SampleRateHertz            int
	LanguageCode               string
	Model                      string
	EnableAutomaticPunctuation bool
	InterimResults             bool
	SingleUtterance            bool
}

// RecognizeRequest is one unit sent to a recognizer stream. Exactly one of
// Config or Audio is set.
type RecognizeRequest struct {
	Config *StreamConfig
	Audio  AudioChunk
}

// ConfigRequest wraps cfg as the first request of a stream.
func ConfigRequest(cfg StreamConfig) RecognizeRequest {
	return RecognizeRequest{Config: &cfg}
}

// AudioRequest wraps chunk as an audio-content request.
func AudioRequest(chunk AudioChunk) RecognizeRequest {
	return RecognizeRequest{Audio: chunk}
}

// IsConfig reports whether the request carries the stream configuration.
func (r RecognizeRequest) IsConfig() bool {
	return r.Config != nil
}

// Alternative is one candidate transcript for a result.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Result is a recognized segment. Interim results may still be revised,
// final ones will not.
type Result struct {
	Alternatives []Alternative
	IsFinal      bool
}

// Transcript returns the text of the top alternative, or "" when there is none.
func (r Result) Transcript() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// RecognizeResponse is one message received from a recognizer stream.
type RecognizeResponse struct {
	Results []Result
}
