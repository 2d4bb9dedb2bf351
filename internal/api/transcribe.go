package api

import (
	"errors"
	"mime"
	"net/http"

	"github.com/lyricpulse/lyricpulse/internal/export"
	"github.com/lyricpulse/lyricpulse/internal/jobs"
	"github.com/lyricpulse/lyricpulse/internal/staging"
)

// transcribeHandler aligns an upload synchronously and returns the
// segments, as JSON or, with ?format=srt, as a subtitle file.
func transcribeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		}

		form, err := parseForm(w, r, cfg.MaxUploadBytes)
		if err != nil {
			writeFormError(w, err)
			return
		}
		defer form.close()

		if form.audio == nil {
			WriteError(w, http.StatusBadRequest, "audio file is required", CodeBadRequest)
			return
		}

		// scratch copy, removed once the response is written
		scratchID := jobs.NewID()
		audioPath, err := cfg.Store.SaveAudio(scratchID, form.audioName, form.audio)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		}
		defer func() {
			if err := cfg.Store.RemoveJob(scratchID); err != nil {
				cfg.Logger.Warn("failed to remove transcription scratch files", "error", err)
			}
		}()

		segs, err := cfg.Aligner.Align(r.Context(), audioPath, form.text)
		if err != nil {
			if errors.Is(err, staging.ErrInvalidUpload) {
				WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
				return
			}
			cfg.Logger.Error("transcription failed", "error", err, "filename", form.audioName)
			WriteError(w, http.StatusInternalServerError, err.Error(), CodeInternal)
			return
		}

		if format == export.FormatSRT {
			w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": srtName(form.audioName)}))
			w.WriteHeader(http.StatusOK)
			if err := export.WriteSRT(w, segs); err != nil {
				cfg.Logger.Warn("failed to write srt response", "error", err)
			}
			return
		}

		WriteJSON(w, http.StatusOK, TranscribeResponse{
			Status:        "success",
			Filename:      form.audioName,
			Transcription: segs,
		})
	}
}

func srtName(audioName string) string {
	stem := export.Stem(audioName, 0)
	if stem == "" {
		stem = "transcription"
	}
	return stem + ".srt"
}
