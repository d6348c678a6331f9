package audioprobe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/tcolgate/mp3"
)

// Duration probing from container metadata, without decoding audio.
// Each format reader walks just enough structure to recover playback
// length: WAV data size over byte rate, MP3 frame headers, the last
// OGG page granule, the Matroska segment duration, the MP4 movie
// header.

var ErrUnknownFormat = errors.New("unrecognized audio container")

// Duration returns the playback length in seconds of the audio file at
// path.
func Duration(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	return DurationBytes(data)
}

func DurationBytes(data []byte) (float64, error) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return wavDuration(data)
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("OggS")):
		return oggDuration(data)
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return webmDuration(data)
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		return mp4Duration(data)
	case len(data) >= 3 && (bytes.Equal(data[:3], []byte("ID3")) || isMP3Sync(data)):
		return mp3Duration(data)
	default:
		return 0, ErrUnknownFormat
	}
}

func isMP3Sync(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// wavDuration walks RIFF chunks for "fmt " (byte rate) and "data"
// (payload size).
func wavDuration(data []byte) (float64, error) {
	var byteRate uint32
	var dataSize uint32

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, fmt.Errorf("wav: truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			dataSize = size
		}

		// chunks are word aligned
		pos = body + int(size)
		if size%2 == 1 {
			pos++
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0, fmt.Errorf("wav: missing fmt or data chunk")
	}

	return float64(dataSize) / float64(byteRate), nil
}

func mp3Duration(data []byte) (float64, error) {
	dec := mp3.NewDecoder(bytes.NewReader(data))

	var frame mp3.Frame
	var skipped int
	var total float64
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if total > 0 {
				// trailing garbage after valid frames is tolerated
				break
			}

			return 0, fmt.Errorf("mp3: %w", err)
		}
		total += frame.Duration().Seconds()
	}

	if total <= 0 {
		return 0, fmt.Errorf("mp3: no frames")
	}

	return total, nil
}

// oggDuration divides the granule position of the last page by the
// codec sample rate (48 kHz for opus, from the id header for vorbis).
func oggDuration(data []byte) (float64, error) {
	last := bytes.LastIndex(data, []byte("OggS"))
	if last < 0 || last+14 > len(data) {
		return 0, fmt.Errorf("ogg: no pages")
	}
	granule := binary.LittleEndian.Uint64(data[last+6 : last+14])

	var rate float64
	switch {
	case bytes.Contains(data[:min(len(data), 512)], []byte("OpusHead")):
		rate = 48000
	default:
		idx := bytes.Index(data[:min(len(data), 512)], []byte("\x01vorbis"))
		if idx < 0 || idx+16 > len(data) {
			return 0, fmt.Errorf("ogg: unknown codec")
		}
		rate = float64(binary.LittleEndian.Uint32(data[idx+12 : idx+16]))
	}
	if rate == 0 {
		return 0, fmt.Errorf("ogg: zero sample rate")
	}

	return float64(granule) / rate, nil
}

// webmDuration scans for the segment Duration element (0x4489) and the
// TimecodeScale (0x2AD7B1, default 1 ms). A full EBML parse is not
// needed to read these two values.
func webmDuration(data []byte) (float64, error) {
	scale := float64(1_000_000) // nanoseconds per timecode unit

	if idx := bytes.Index(data, []byte{0x2A, 0xD7, 0xB1}); idx >= 0 && idx+4 < len(data) {
		size := int(data[idx+3] & 0x7F)
		if data[idx+3]&0x80 != 0 && idx+4+size <= len(data) {
			var v uint64
			for _, b := range data[idx+4 : idx+4+size] {
				v = v<<8 | uint64(b)
			}
			if v > 0 {
				scale = float64(v)
			}
		}
	}

	idx := bytes.Index(data, []byte{0x44, 0x89})
	if idx < 0 || idx+3 > len(data) {
		return 0, fmt.Errorf("webm: no duration element")
	}
	size := int(data[idx+2] & 0x7F)
	if data[idx+2]&0x80 == 0 || idx+3+size > len(data) {
		return 0, fmt.Errorf("webm: malformed duration element")
	}

	var units float64
	switch size {
	case 4:
		units = float64(math.Float32frombits(binary.BigEndian.Uint32(data[idx+3 : idx+7])))
	case 8:
		units = math.Float64frombits(binary.BigEndian.Uint64(data[idx+3 : idx+11]))
	default:
		return 0, fmt.Errorf("webm: unexpected duration size %d", size)
	}

	return units * scale / 1e9, nil
}

// mp4Duration reads timescale and duration from the mvhd box.
func mp4Duration(data []byte) (float64, error) {
	idx := bytes.Index(data, []byte("mvhd"))
	if idx < 0 || idx+8 > len(data) {
		return 0, fmt.Errorf("mp4: no mvhd box")
	}

	version := data[idx+4]
	if version == 1 {
		if idx+36 > len(data) {
			return 0, fmt.Errorf("mp4: truncated mvhd")
		}
		timescale := binary.BigEndian.Uint32(data[idx+24 : idx+28])
		duration := binary.BigEndian.Uint64(data[idx+28 : idx+36])
		if timescale == 0 {
			return 0, fmt.Errorf("mp4: zero timescale")
		}

		return float64(duration) / float64(timescale), nil
	}

	if idx+24 > len(data) {
		return 0, fmt.Errorf("mp4: truncated mvhd")
	}
	timescale := binary.BigEndian.Uint32(data[idx+16 : idx+20])
	duration := binary.BigEndian.Uint32(data[idx+20 : idx+24])
	if timescale == 0 {
		return 0, fmt.Errorf("mp4: zero timescale")
	}

	return float64(duration) / float64(timescale), nil
}
