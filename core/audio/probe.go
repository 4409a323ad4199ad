package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/gopxl/beep/v2/mp3"
)

// ErrNotMP3 is returned for uploads that are not MP3 files.
var ErrNotMP3 = errors.New("only mp3 files are accepted")

// Info 上传音频的探测结果
type Info struct {
	Title    string  // ID3 标题，没有时为文件名
	Duration float64 // seconds
}

// IsMP3 accepts audio/mpeg uploads and files with an .mp3 extension.
func IsMP3(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".mp3") {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return ct == "audio/mpeg" || ct == "audio/mp3"
}

// Probe reads the ID3 title and decodes the MP3 stream to measure its
// duration. r is rewound before returning.
func Probe(r io.ReadSeeker, filename string) (Info, error) {
	title := readTitle(r)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, err
	}

	duration, err := decodeDuration(r)
	if _, serr := r.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", filename, err)
	}
	return Info{Title: displayName(title, filename), Duration: duration}, nil
}

// readTitle returns "" when the file has no readable ID3v2 tag.
func readTitle(r io.Reader) string {
	tag, err := id3v2.ParseReader(r, id3v2.Options{Parse: true, ParseFrames: []string{"Title"}})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(tag.Title())
}

// nopSeekCloser keeps the reader seekable so the decoder can measure length.
type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }

func decodeDuration(r io.ReadSeeker) (float64, error) {
	streamer, format, err := mp3.Decode(nopSeekCloser{r})
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	n := streamer.Len()
	if n <= 0 {
		return 0, errors.New("empty mp3 stream")
	}
	return format.SampleRate.D(n).Seconds(), nil
}

func displayName(title, filename string) string {
	if title != "" {
		return title
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
