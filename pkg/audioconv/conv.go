// Package audioconv converts between the pipeline's canonical audio form
// (mono float32 PCM at 16 kHz, samples in [-1, 1]) and the encoded shapes the
// backends speak: wav/mp3/ogg bytes coming back from speech synthesis, and
// int16 little-endian PCM going out to transcription.
package audioconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const SampleRate = 16000

// DecodePCM16k decodes an encoded audio payload into mono PCM16k float32.
// The container is sniffed from the leading bytes: RIFF (wav), OggS
// (vorbis, then opus), anything else is tried as mp3.
func DecodePCM16k(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, errors.New("audio payload too short")
	}

	switch string(data[:4]) {
	case "RIFF":
		return decodeWAV(data)
	case "OggS":
		if s, err := decodeOggVorbis(data); err == nil {
			return s, nil
		}
		if s, err := decodeOggOpus(data); err == nil {
			return s, nil
		}
		return nil, errors.New("cannot decode Ogg container as Vorbis or Opus")
	default:
		return decodeMP3(data)
	}
}

func decodeMP3(data []byte) ([]float32, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, err
	}

	x := Int16ToFloat32(ints)
	x = downmixInterleaved(x, 2) // mp3 decoder outputs stereo

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return Resample(x, sr, SampleRate), nil
}

func decodeOggVorbis(data []byte) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}

	x := pcm
	if format.Channels > 1 {
		x = downmixInterleaved(pcm, format.Channels)
	}
	return Resample(x, format.SampleRate, SampleRate), nil
}

func decodeOggOpus(data []byte) ([]float32, error) {
	dec, err := popus.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2) // ~0.5s of audio
	)
	for {
		n, err := dec.Read(buf) // n = samples per channel
		if n > 0 {
			pcm48 = append(pcm48, Int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(pcm48) == 0 {
		return nil, errors.New("empty opus stream")
	}

	if ch > 1 {
		pcm48 = downmixInterleaved(pcm48, ch)
	}
	return Resample(pcm48, 48000, SampleRate), nil
}

// Float32ToInt16LE packs float32 samples into int16 little-endian bytes,
// clamping out-of-range values.
func Float32ToInt16LE(pcm []float32) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		v := clamp(float64(s), -1.0, 1.0)
		var n int16
		if v < 0 {
			n = int16(v * 0x8000)
		} else {
			n = int16(v * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(n))
	}
	return out
}

// Int16ToFloat32 expands int16 samples to float32 in [-1, 1].
func Int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts between sample rates with linear interpolation. Good
// enough for speech, not for music.
func Resample(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
