package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/lyricpulse/lyricpulse/internal/staging"
)

const (
	defaultAudioName = "input_audio.mp3"
	maxLyricsBytes   = 1 << 20
	maxMemoryBytes   = 32 << 20
)

var errNotMultipart = errors.New("request must be multipart/form-data")

// uploadForm holds the audio part and lyric text of a multipart request.
// The lyric text may arrive as a file part or a plain field.
type uploadForm struct {
	req       *http.Request
	audio     multipart.File
	audioName string
	text      string
	hasText   bool
}

func parseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, errNotMultipart
		}
		return nil, err
	}

	form := &uploadForm{req: r}

	file, header, err := r.FormFile("audio")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		form.close()
		return nil, fmt.Errorf("%w: %v", staging.ErrInvalidUpload, err)
	default:
		form.audio = file
		form.audioName = header.Filename
		if form.audioName == "" {
			form.audioName = defaultAudioName
		}
	}

	text, ok, err := lyricField(r)
	if err != nil {
		form.close()
		return nil, err
	}
	form.text, form.hasText = text, ok
	return form, nil
}

func lyricField(r *http.Request) (string, bool, error) {
	file, _, err := r.FormFile("text")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxLyricsBytes+1))
		if err != nil {
			return "", false, fmt.Errorf("%w: read lyrics: %v", staging.ErrInvalidUpload, err)
		}
		if len(data) > maxLyricsBytes {
			return "", false, fmt.Errorf("%w: lyrics file is too large", staging.ErrInvalidUpload)
		}
		text, err := decodeLyrics(data)
		return text, true, err
	}
	if !errors.Is(err, http.ErrMissingFile) {
		return "", false, fmt.Errorf("%w: %v", staging.ErrInvalidUpload, err)
	}

	if values, ok := r.MultipartForm.Value["text"]; ok && len(values) > 0 {
		text, err := decodeLyrics([]byte(values[0]))
		return text, true, err
	}
	return "", false, nil
}

// decodeLyrics accepts UTF-8 with or without a BOM, and UTF-16 with a BOM.
func decodeLyrics(data []byte) (string, error) {
	utf16 := bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || bytes.HasPrefix(data, []byte{0xFF, 0xFE})
	if !utf16 && !utf8.Valid(data) {
		return "", fmt.Errorf("%w: lyrics must be UTF-8 text", staging.ErrInvalidUpload)
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("%w: decode lyrics: %v", staging.ErrInvalidUpload, err)
	}
	return string(out), nil
}

func (f *uploadForm) close() {
	if f.audio != nil {
		f.audio.Close()
	}
	if f.req.MultipartForm != nil {
		f.req.MultipartForm.RemoveAll()
	}
}

func writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "upload is too large", CodeTooLarge)
	default:
		WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
	}
}
