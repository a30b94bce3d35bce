package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kwv/bubblegrade/omr"
)

const defaultConfigFile = "config.yaml"

// App encapsulates the application state and dependencies
type App struct {
	Config     *omr.Config
	Grader     *omr.Grader
	Results    *omr.ResultTracker
	MQTTClient *omr.MQTTClient
	Publisher  *omr.Publisher

	// CLI flags
	ConfigFile   string
	File         string
	URL          string
	Answers      int
	Compare      string
	DataOut      string
	ImageOut     string
	VectorOut    string
	FetchTimeout time.Duration
	HttpPort     int
	MqttMode     bool
	HttpMode     bool

	out    io.Writer
	keysMu sync.Mutex
	keys   map[string]omr.AnswerMatrix // answer keys by path
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		out:  os.Stdout,
		keys: make(map[string]omr.AnswerMatrix),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.File = opts.File
	a.URL = opts.URL
	a.Answers = opts.Answers
	a.Compare = opts.Compare
	a.DataOut = opts.DataOut
	a.ImageOut = opts.ImageOut
	a.VectorOut = opts.VectorOut
	a.FetchTimeout = opts.FetchTimeout
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file. A missing default config file is not an
// error; the built-in defaults are used instead.
func (a *App) loadConfig() error {
	if a.Config != nil {
		if a.Grader == nil {
			a.Grader = omr.NewGrader(a.Config)
		}
		return nil
	}

	path := a.ConfigFile
	if path == "" {
		path = defaultConfigFile
	}

	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigFile {
		a.Config = omr.DefaultConfig()
	} else {
		cfg, err := omr.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a.Config = cfg
		log.Printf("Loaded config from %s", path)
	}

	a.Grader = omr.NewGrader(a.Config)
	return nil
}

// RunGrade grades a single sheet from --file or --url and writes the requested outputs.
func (a *App) RunGrade() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	n := a.Answers
	if n == 0 {
		n = a.Config.Answers
	}

	var (
		img    image.Image
		source string
		err    error
	)
	if a.File != "" {
		source = a.File
		img, err = omr.LoadImage(a.File)
	} else {
		source = a.URL
		ctx, cancel := context.WithTimeout(context.Background(), a.fetchBudget())
		defer cancel()
		img, err = omr.FetchImage(ctx, a.URL, omr.WithTimeout(a.FetchTimeout))
	}
	if err != nil {
		return err
	}

	res, err := a.Grader.GradeImage(img, n)
	if err != nil {
		return fmt.Errorf("grading %s: %w", source, err)
	}
	res.Source = source

	a.printResult(res)

	if a.Compare != "" {
		key, err := a.answerKey(a.Compare)
		if err != nil {
			return err
		}
		score, err := res.Grade(key)
		if err != nil {
			return fmt.Errorf("comparing with %s: %w", a.Compare, err)
		}
		_, _ = fmt.Fprintf(a.out, "Score: %s (%.1f%%)\n", score, score.Percent)
	}

	if a.DataOut != "" {
		if err := omr.SaveResults(a.DataOut, res.Answers); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Answers written to %s\n", a.DataOut)
	}

	if a.ImageOut != "" {
		if err := omr.SaveOverlay(a.ImageOut, res, a.Config.Overlay); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Overlay written to %s\n", a.ImageOut)
	}

	if a.VectorOut != "" {
		if err := a.writeGrid(a.VectorOut, res); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Grid written to %s\n", a.VectorOut)
	}

	return nil
}

// fetchBudget covers every retry of a download
func (a *App) fetchBudget() time.Duration {
	timeout := a.FetchTimeout
	if timeout <= 0 {
		timeout = omr.DefaultFetchTimeout
	}
	return timeout*time.Duration(omr.DefaultMaxRetries) + 5*time.Second
}

func (a *App) printResult(res *omr.Result) {
	_, _ = fmt.Fprintf(a.out, "Sheet: %s\n", res.Source)
	_, _ = fmt.Fprintf(a.out, "Boxes: %d (radius %d px)\n", res.Boxes, res.Radius)
	_, _ = fmt.Fprintf(a.out, "Spacing: column %.1f px, row %.1f px", res.Spacing.Right, res.Spacing.Down)
	if res.Spacing.HasSet {
		_, _ = fmt.Fprintf(a.out, ", set %.1f px", res.Spacing.Set)
	}
	_, _ = fmt.Fprintln(a.out)

	for q, row := range res.Answers.Questions() {
		marks := make([]string, len(row))
		for i, m := range row {
			marks[i] = m.String()
		}
		_, _ = fmt.Fprintf(a.out, "Q%-3d %v  [%s]\n", q+1, res.Selected[q], strings.Join(marks, " "))
	}
}

func (a *App) writeGrid(path string, res *omr.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	g := omr.NewGridRenderer(res, a.Config.Overlay)
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return g.RenderToPNG(f)
	}
	return g.RenderToSVG(f)
}

// answerKey loads an answer key once and caches it by path
func (a *App) answerKey(path string) (omr.AnswerMatrix, error) {
	a.keysMu.Lock()
	defer a.keysMu.Unlock()

	if key, ok := a.keys[path]; ok {
		return key, nil
	}
	key, err := omr.LoadResults(path)
	if err != nil {
		return nil, err
	}
	a.keys[path] = key
	return key, nil
}

// gradeSheet decodes and grades an uploaded or received photo and stores the result.
// keyPath is optional.
func (a *App) gradeSheet(source string, payload []byte, n int, keyPath string) (*omr.Result, error) {
	img, err := omr.DecodeImage(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	res, err := a.Grader.GradeImage(img, n)
	if err != nil {
		return nil, err
	}
	res.Source = source

	if keyPath != "" {
		key, err := a.answerKey(keyPath)
		if err != nil {
			log.Printf("Warning: answer key for %s unavailable: %v", source, err)
		} else if _, err := res.Grade(key); err != nil {
			log.Printf("Warning: %s does not match answer key %s: %v", source, keyPath, err)
		}
	}

	if a.Results != nil {
		a.Results.Add(res)
	}
	return res, nil
}

// HandleSheet grades a sheet photo received from a station and publishes the result.
func (a *App) HandleSheet(stationID string, payload []byte) {
	var keyPath string
	for _, st := range a.Config.Stations {
		if st.ID == stationID {
			keyPath = st.Key
		}
	}

	res, err := a.gradeSheet(stationID, payload, a.Config.AnswersFor(stationID), keyPath)
	if err != nil {
		log.Printf("[MQTT] error grading sheet from %s: %v", stationID, err)
		return
	}

	if res.Score != nil {
		log.Printf("%s: graded %d questions, score %s (%.1f%%)", stationID, res.Answers.QuestionCount(), res.Score, res.Score.Percent)
	} else {
		log.Printf("%s: graded %d questions", stationID, res.Answers.QuestionCount())
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(res); err != nil {
			log.Printf("Error publishing result for %s: %v", stationID, err)
		}
	}
}

// RunService runs the MQTT and/or HTTP service until interrupted.
func (a *App) RunService() error {
	fmt.Println("Starting bubblegrade service...")

	if err := a.loadConfig(); err != nil {
		return err
	}
	a.Results = omr.NewResultTracker(a.Config.History)

	if a.MqttMode {
		mqttClient, err := omr.InitMQTT(a.Config, a.HandleSheet)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured")
		}
		a.MQTTClient = mqttClient
		a.Publisher = omr.NewPublisher(mqttClient.Client(), a.Config.MQTT.PublishPrefix)
	}

	if a.HttpMode {
		handler := newHTTPServer(a)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, handler); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		for _, st := range a.Config.Stations {
			fmt.Printf("    - %s (%s)\n", st.Topic, st.ID)
		}
		prefix := a.Config.MQTT.PublishPrefix
		fmt.Printf("  Publishing to: %s/{station}/result\n", prefix)
		fmt.Printf("  Combined results: %s/results\n", prefix)
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Println("  GET  /health                   - Health check")
		fmt.Println("  POST /evaluate?answers=N       - Grade an uploaded sheet photo")
		fmt.Println("  GET  /results/{id}             - Graded result as JSON")
		fmt.Println("  GET  /results/{id}/overlay.png - Sheet with marked answers")
		fmt.Println("  GET  /results/{id}/grid.svg    - Recovered answer grid")
		fmt.Println("  GET  /latest.json              - Newest result per source")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
	return nil
}
