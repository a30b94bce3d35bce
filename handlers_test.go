package main

import (
	"bytes"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kwv/bubblegrade/omr"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// evaluate posts a raw sheet photo to /evaluate
func evaluate(t *testing.T, h http.Handler, query string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/evaluate"+query, bytes.NewReader(body))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) omr.Result {
	t.Helper()
	var res omr.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, rec.Body.String())
	}
	return res
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rec := get(newHTTPServer(app), "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status struct {
		Status  string `json:"status"`
		Results int    `json:"results"`
		MQTT    bool   `json:"mqtt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "ok" || status.Results != 0 || status.MQTT {
		t.Errorf("unexpected health %+v", status)
	}
}

// ---------------------------------------------------------------------------
// /evaluate
// ---------------------------------------------------------------------------

func TestEvaluate_RawBody(t *testing.T) {
	app := newTestApp(t)
	h := newHTTPServer(app)

	rec := evaluate(t, h, "", testSheetPNG(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	res := decodeResult(t, rec)
	if res.Source != "upload" {
		t.Errorf("Source = %q, want upload", res.Source)
	}
	if rec.Header().Get("Location") != "/results/"+res.ID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	if score, err := omr.Compare(res.Answers, testKey()); err != nil || score.Correct != 2 {
		t.Errorf("answers %v do not match key: %v", res.Answers, err)
	}
	if app.Results.Len() != 1 {
		t.Errorf("tracker has %d results, want 1", app.Results.Len())
	}
}

func TestEvaluate_Multipart(t *testing.T) {
	app := newTestApp(t)
	h := newHTTPServer(app)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "sheet.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(testSheetPNG(t))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/evaluate?answers=3", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if res := decodeResult(t, rec); res.Answers.QuestionCount() != 2 {
		t.Errorf("questions = %d, want 2", res.Answers.QuestionCount())
	}
}

func TestEvaluate_StationKey(t *testing.T) {
	app := newTestApp(t)
	key := filepath.Join(t.TempDir(), "key.json")
	wrong := testKey()
	wrong[0][0] = omr.Row{omr.MarkChecked, omr.MarkEmpty, omr.MarkEmpty}
	if err := omr.SaveResults(key, wrong); err != nil {
		t.Fatal(err)
	}
	app.Config.Answers = 5
	app.Config.Stations = []omr.StationConfig{{ID: "room-a", Topic: "t/a", Answers: 3, Key: key}}

	rec := evaluate(t, newHTTPServer(app), "?station=room-a", testSheetPNG(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	res := decodeResult(t, rec)
	if res.Source != "room-a" {
		t.Errorf("Source = %q, want room-a", res.Source)
	}
	if res.Score == nil || res.Score.String() != "1/2" {
		t.Errorf("Score = %v, want 1/2", res.Score)
	}
}

func TestEvaluate_BadRequests(t *testing.T) {
	app := newTestApp(t)
	h := newHTTPServer(app)

	white := image.NewGray(image.Rect(0, 0, 50, 50))
	for i := range white.Pix {
		white.Pix[i] = 255
	}

	tests := []struct {
		name  string
		query string
		body  []byte
		want  int
	}{
		{"empty body", "", nil, http.StatusBadRequest},
		{"not an image", "", []byte("hello"), http.StatusBadRequest},
		{"bad answers", "?answers=four", testSheetPNG(t), http.StatusBadRequest},
		{"one answer", "?answers=1", testSheetPNG(t), http.StatusBadRequest},
		{"no boxes", "", encodePNG(t, white), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := evaluate(t, h, tt.query, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if app.Results.Len() != 0 {
		t.Errorf("failed requests must not store results, got %d", app.Results.Len())
	}
}

func TestEvaluate_MethodNotAllowed(t *testing.T) {
	rec := get(newHTTPServer(newTestApp(t)), "/evaluate")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// /results
// ---------------------------------------------------------------------------

func TestResults_Endpoints(t *testing.T) {
	app := newTestApp(t)
	h := newHTTPServer(app)

	created := decodeResult(t, evaluate(t, h, "", testSheetPNG(t)))

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/results/" + created.ID, "application/json", created.ID},
		{"/results/" + created.ID + "/overlay.png", "image/png", "PNG"},
		{"/results/" + created.ID + "/grid.svg", "image/svg+xml", "<svg"},
		{"/latest.json", "application/json", `"upload"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(h, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}
}

func TestResults_NotFound(t *testing.T) {
	h := newHTTPServer(newTestApp(t))
	for _, path := range []string{"/results/nope", "/results/nope/overlay.png", "/results/nope/grid.svg", "/nope"} {
		if rec := get(h, path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestLatest_Empty(t *testing.T) {
	rec := get(newHTTPServer(newTestApp(t)), "/latest.json")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestIndexPage(t *testing.T) {
	rec := get(newHTTPServer(newTestApp(t)), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/evaluate"`) {
		t.Error("index page should post to /evaluate")
	}
}

// ---------------------------------------------------------------------------
// gradeStatus
// ---------------------------------------------------------------------------

func TestGradeStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{omr.ErrEmptyInput, http.StatusUnprocessableEntity},
		{omr.ErrGridIncomplete, http.StatusUnprocessableEntity},
		{omr.ErrDegenerateShape, http.StatusUnprocessableEntity},
		{omr.ErrInvalidLayout, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := gradeStatus(tt.err); got != tt.want {
			t.Errorf("gradeStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
