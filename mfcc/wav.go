package mfcc

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE

	wavWriteBitDepth = 16
)

var (
	wavSubFormatPCM       = [16]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}
	wavSubFormatIEEEFloat = [16]byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}
)

// wavChunkInfo는 go-audio/wav 디코더가 노출하지 않는 fmt/data chunk 정보다.
type wavChunkInfo struct {
	audioFormat   uint16
	subFormat     [16]byte
	dataChunkSize uint32
	hasDataChunk  bool
}

func (i wavChunkInfo) encoding() (isFloat, isPCM bool) {
	switch i.audioFormat {
	case wavFormatIEEEFloat:
		return true, false
	case wavFormatPCM:
		return false, true
	case wavFormatExtensible:
		return i.subFormat == wavSubFormatIEEEFloat, i.subFormat == wavSubFormatPCM
	}
	return false, false
}

// scanWavChunks는 RIFF chunk 목록을 훑어 fmt와 data chunk 정보를 모은다.
// 홀수 크기 chunk의 패딩 바이트와 크기가 0인 부가 chunk를 건너뛴다.
func scanWavChunks(r io.ReadSeeker) (wavChunkInfo, error) {
	var info wavChunkInfo
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, errors.Wrap(err, "rewind wav reader failed")
	}

	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return info, errors.Wrap(err, "read RIFF header failed")
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return info, errors.New("not a RIFF/WAVE file")
	}

	hasFmt := false
	for !hasFmt || !info.hasDataChunk {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return info, errors.Wrap(err, "read chunk header failed")
		}
		id := string(chunk[:4])
		size := binary.LittleEndian.Uint32(chunk[4:])

		switch id {
		case "fmt ":
			if size < 16 {
				return info, errors.New("fmt chunk too short")
			}
			if size > 1<<10 {
				return info, errors.Errorf("fmt chunk too large: %d bytes", size)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return info, errors.Wrap(err, "read fmt chunk failed")
			}
			info.audioFormat = binary.LittleEndian.Uint16(buf[0:2])
			if info.audioFormat == wavFormatExtensible {
				// cbSize(2) 뒤에 valid bits(2), channel mask(4), sub-format GUID(16)가 온다.
				if len(buf) < 40 {
					return info, errors.Errorf("fmt chunk too short for extensible format: %d bytes", len(buf))
				}
				copy(info.subFormat[:], buf[24:40])
			}
			hasFmt = true
			if size%2 == 1 {
				if _, err := r.Seek(1, io.SeekCurrent); err != nil {
					return info, errors.Wrap(err, "skip fmt padding failed")
				}
			}
		case "data":
			info.dataChunkSize = size
			info.hasDataChunk = true
			if !hasFmt {
				if _, err := r.Seek(int64(size)+int64(size%2), io.SeekCurrent); err != nil {
					return info, errors.Wrap(err, "skip data chunk failed")
				}
			}
		default:
			if _, err := r.Seek(int64(size)+int64(size%2), io.SeekCurrent); err != nil {
				return info, errors.Wrapf(err, "skip %q chunk failed", id)
			}
		}
	}
	return info, nil
}

func readWavFile(path string) (data []float64, sampleRate int, err error) {
	file0, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open wav file failed")
	}
	defer func() {
		if err0 := file0.Close(); err0 != nil {
			err = multierr.Append(err, err0)
		}
	}()

	info, err := scanWavChunks(file0)
	if err != nil {
		return nil, 0, errors.Wrap(err, "parse wav format failed")
	}
	if _, err := file0.Seek(0, io.SeekStart); err != nil {
		return nil, 0, errors.Wrap(err, "rewind wav file failed")
	}

	decoder := wav.NewDecoder(file0)
	if err := decoder.FwdToPCM(); err != nil {
		return nil, 0, errors.Wrap(err, "decode wav header failed")
	}
	channels := int(decoder.NumChans)
	if channels <= 0 {
		return nil, 0, errors.Errorf("invalid channel count: %d", decoder.NumChans)
	}
	sampleRate = int(decoder.SampleRate)
	if sampleRate <= 0 {
		return nil, 0, errors.Errorf("invalid sample rate: %dHz", sampleRate)
	}

	isFloat, isPCM := info.encoding()
	switch {
	case isFloat:
		data, err = decodeFloatPCM(decoder, channels, int(info.dataChunkSize))
		if err != nil {
			return nil, 0, errors.Wrap(err, "decode float wav data failed")
		}
	case isPCM:
		buf, err := decoder.FullPCMBuffer()
		if err != nil {
			return nil, 0, errors.Wrap(err, "decode wav file failed")
		}
		data, err = decodeIntPCMToMono(buf, channels, int(decoder.BitDepth), int(info.dataChunkSize))
		if err != nil {
			return nil, 0, err
		}
	default:
		return nil, 0, errors.Errorf("unsupported wav format: code=%d subformat=%x", info.audioFormat, info.subFormat)
	}
	return data, sampleRate, nil
}

// decodeIntPCMToMono는 정수 PCM을 [-1, 1) 범위로 정규화하고 채널 평균으로 다운믹스한다.
// 8비트 PCM은 unsigned이므로 0x80을 0으로 맞춘다.
func decodeIntPCMToMono(buf *audio.IntBuffer, channels, decoderBitDepth, dataChunkSize int) ([]float64, error) {
	if buf == nil {
		return nil, errors.New("invalid PCM buffer")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = decoderBitDepth
	}
	if bitDepth <= 0 {
		return nil, errors.New("unknown source bit depth")
	}

	samples := buf.Data
	if dataChunkSize > 0 {
		bytesPerSample := (bitDepth + 7) / 8
		if dataChunkSize%bytesPerSample != 0 {
			return nil, errors.Errorf("wav data size (%d bytes) is not aligned to sample size (%d bytes)", dataChunkSize, bytesPerSample)
		}
		expected := dataChunkSize / bytesPerSample
		if expected > len(samples) {
			return nil, errors.Errorf("wav data truncated: expected %d samples, got %d", expected, len(samples))
		}
		samples = samples[:expected]
	}
	if len(samples)%channels != 0 {
		return nil, errors.Errorf("wav data length (%d samples) is not divisible by channel count (%d)", len(samples), channels)
	}

	normalizer := math.Ldexp(1, bitDepth-1)
	offset := 0.0
	if bitDepth == 8 {
		offset = normalizer
	}

	frames := len(samples) / channels
	data := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += (float64(s) - offset) / normalizer
		}
		data[i] = sum / float64(channels)
	}
	return data, nil
}

// decodeFloatPCM은 32/64비트 IEEE float PCM을 직접 읽어 모노로 다운믹스한다.
func decodeFloatPCM(decoder *wav.Decoder, channels, dataChunkSize int) ([]float64, error) {
	if decoder.PCMChunk == nil {
		return nil, errors.New("PCM chunk not found")
	}
	bytesPerSample := int(decoder.BitDepth) / 8
	if bytesPerSample != 4 && bytesPerSample != 8 {
		return nil, errors.Errorf("unsupported float bit depth: %d", decoder.BitDepth)
	}
	bytesPerFrame := bytesPerSample * channels

	byteCount := decoder.PCMSize
	if dataChunkSize > 0 {
		if dataChunkSize > decoder.PCMSize {
			return nil, errors.Errorf("wav data size (%d bytes) exceeds available PCM size (%d bytes)", dataChunkSize, decoder.PCMSize)
		}
		byteCount = dataChunkSize
	}
	raw := make([]byte, byteCount)
	if _, err := io.ReadFull(decoder.PCMChunk, raw); err != nil {
		return nil, errors.Wrap(err, "read PCM chunk failed")
	}
	if len(raw)%bytesPerFrame != 0 {
		return nil, errors.Errorf("wav data length (%d bytes) is not divisible by frame size (%d)", len(raw), bytesPerFrame)
	}

	data := make([]float64, len(raw)/bytesPerFrame)
	for i := range data {
		sum := 0.0
		for c := range channels {
			b := raw[i*bytesPerFrame+c*bytesPerSample:]
			var sample float64
			if bytesPerSample == 4 {
				sample = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			} else {
				sample = math.Float64frombits(binary.LittleEndian.Uint64(b))
			}
			if math.IsNaN(sample) || math.IsInf(sample, 0) {
				return nil, errors.Errorf("invalid float PCM sample at frame %d, channel %d", i, c)
			}
			sum += sample
		}
		data[i] = sum / float64(channels)
	}
	return data, nil
}

func writeWavFile(path string, samples []float64, sampleRate int) (err error) {
	if sampleRate <= 0 {
		return errors.Errorf("invalid sample rate: %dHz", sampleRate)
	}
	file0, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create wav file failed")
	}
	defer func() {
		if err0 := file0.Close(); err0 != nil {
			err = multierr.Append(err, err0)
		}
	}()

	const maxValue = 1<<(wavWriteBitDepth-1) - 1
	data := make([]int, len(samples))
	for i, v := range samples {
		if math.IsNaN(v) {
			return errors.Errorf("invalid sample at index %d: %v", i, v)
		}
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * maxValue))
	}

	enc := wav.NewEncoder(file0, sampleRate, wavWriteBitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: wavWriteBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "encode wav data failed")
	}
	return errors.Wrap(enc.Close(), "finalize wav file failed")
}
