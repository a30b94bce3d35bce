package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kwv/bubblegrade/omr"
)

// maxUploadBytes limits uploaded sheet photos to 50 MB.
const maxUploadBytes = 50 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(app *App) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Results   int       `json:"results"`
			MQTT      bool      `json:"mqtt"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Results:   app.Results.Len(),
			MQTT:      app.MQTTClient != nil && app.MQTTClient.IsConnected(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	// Grade an uploaded sheet photo, sent as the raw body or as the
	// multipart field "image".
	mux.HandleFunc("POST /evaluate", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		station := q.Get("station")

		n := app.Config.AnswersFor(station)
		if s := q.Get("answers"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid answers %q", s), http.StatusBadRequest)
				return
			}
			n = v
		}

		var keyPath string
		for _, st := range app.Config.Stations {
			if st.ID == station {
				keyPath = st.Key
			}
		}

		payload, err := readUpload(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(payload) == 0 {
			http.Error(w, "empty image", http.StatusBadRequest)
			return
		}

		source := station
		if source == "" {
			source = "upload"
		}

		res, err := app.gradeSheet(source, payload, n, keyPath)
		if err != nil {
			log.Printf("[HTTP] grading %s failed: %v", source, err)
			http.Error(w, err.Error(), gradeStatus(err))
			return
		}

		if app.Publisher != nil && station != "" {
			if err := app.Publisher.PublishResult(res); err != nil {
				log.Printf("Error publishing result for %s: %v", station, err)
			}
		}

		w.Header().Set("Location", "/results/"+res.ID)
		writeJSON(w, http.StatusCreated, res)
	})

	mux.HandleFunc("GET /results/{id}", func(w http.ResponseWriter, r *http.Request) {
		res, ok := app.Results.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "Result not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	// Sheet photo with the detected marks drawn on it
	mux.HandleFunc("GET /results/{id}/overlay.png", func(w http.ResponseWriter, r *http.Request) {
		res, ok := app.Results.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "Result not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := omr.WriteOverlayPNG(w, res, app.Config.Overlay); err != nil {
			log.Printf("Error encoding overlay PNG: %v", err)
		}
	})

	mux.HandleFunc("GET /results/{id}/grid.svg", func(w http.ResponseWriter, r *http.Request) {
		res, ok := app.Results.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "Result not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := omr.NewGridRenderer(res, app.Config.Overlay).RenderToSVG(w); err != nil {
			log.Printf("Error encoding grid SVG: %v", err)
		}
	})

	mux.HandleFunc("GET /latest.json", func(w http.ResponseWriter, r *http.Request) {
		latest := app.Results.Latest()
		if len(latest) == 0 {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(w, http.StatusOK, latest)
	})

	// Default route serves a minimal upload form
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>bubblegrade</title>
</head>
<body>
<form action="/evaluate" method="post" enctype="multipart/form-data">
<input type="file" name="image" accept="image/*">
<button type="submit">Grade</button>
</form>
</body>
</html>`)
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

// readUpload returns the image bytes of a raw or multipart request body
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		return data, nil
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("reading form field image: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading form field image: %w", err)
	}
	return data, nil
}

// gradeStatus maps grading errors to HTTP status codes. Sheets the pipeline
// could read but not lay out as a grid are unprocessable, anything else is a bad request.
func gradeStatus(err error) int {
	switch {
	case errors.Is(err, omr.ErrEmptyInput),
		errors.Is(err, omr.ErrGridIncomplete),
		errors.Is(err, omr.ErrDegenerateShape),
		errors.Is(err, omr.ErrShapeMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}
