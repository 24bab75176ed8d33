package audio

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const wavHeaderSize = 44

var (
	// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("audio: not a WAV stream")
	// ErrUnsupportedWAV is returned for WAV files that are not 16-bit PCM.
	ErrUnsupportedWAV = errors.New("audio: only 16-bit PCM WAV is supported")
)

// WAVHeader is the canonical 44-byte header of a PCM WAV file.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// WAVInfo describes the PCM payload of a decoded WAV file.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// EncodeWAV wraps raw LINEAR16 pcm in a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, errors.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, errors.Errorf("audio: channel count must be positive, got %d", channels)
	}

	const bitsPerSample = 16
	dataSize := uint32(len(pcm))
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bitsPerSample / 8),
		BlockAlign:    uint16(channels * bitsPerSample / 8),
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, errors.Wrap(err, "audio: write WAV header")
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// DecodeWAV returns the PCM payload of a WAV file. Chunks other than "fmt "
// and "data" are skipped.
func DecodeWAV(data []byte) ([]byte, WAVInfo, error) {
	var info WAVInfo
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, info, ErrNotWAV
	}

	var haveFmt bool
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, info, errors.Wrap(ErrNotWAV, "short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return nil, info, ErrUnsupportedWAV
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			if info.BitsPerSample != 16 {
				return nil, info, ErrUnsupportedWAV
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, info, errors.Wrap(ErrNotWAV, "data chunk before fmt chunk")
			}
			return data[body : body+size], info, nil
		}
		// chunks are word aligned
		off = body + size + size%2
	}
	return nil, info, errors.Wrap(ErrNotWAV, "missing data chunk")
}
