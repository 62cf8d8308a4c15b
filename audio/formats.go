package audio

import "bytes"

// IsWAV reports a RIFF container with a WAVE form type.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// IsMP3 reports an ID3v2 tag or an MPEG audio frame sync.
func IsMP3(data []byte) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func IsFLAC(data []byte) bool {
	return bytes.HasPrefix(data, []byte("fLaC"))
}

// GuessExtension maps leading magic bytes to a file extension so external
// tools can pick the right demuxer.
func GuessExtension(data []byte) string {
	header := data
	if len(header) > 16 {
		header = header[:16]
	}
	switch {
	case bytes.HasPrefix(header, []byte("RIFF")) && bytes.Contains(header, []byte("WAVE")):
		return ".wav"
	case bytes.HasPrefix(header, []byte("ID3")) || bytes.HasPrefix(header, []byte{0xFF, 0xFB}):
		return ".mp3"
	case bytes.HasPrefix(header, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(header, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return ".webm"
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		return ".m4a"
	case IsFLAC(header):
		return ".flac"
	}
	return ".audio"
}
