package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile   string
	File         string
	URL          string
	Answers      int
	Compare      string
	DataOut      string
	ImageOut     string
	VectorOut    string
	FetchTimeout time.Duration
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
}

// Runner is the set of modes run dispatches to
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunGrade() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("Error: %v", err)
	}
}

// run parses args and starts the selected mode. A sheet may be given with
// --file or as the first positional argument.
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("bubblegrade", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (defaults apply if missing)")
	fs.StringVar(&opts.File, "file", "", "Sheet image to grade")
	fs.StringVar(&opts.URL, "url", "", "Download the sheet image from this URL")
	fs.IntVar(&opts.Answers, "num", 0, "Answer boxes per question (default: from config)")
	fs.StringVar(&opts.Compare, "comp", "", "Answer key (JSON results file) to score against")
	fs.StringVar(&opts.DataOut, "dout", "", "Write the evaluated answers as JSON to this file")
	fs.StringVar(&opts.ImageOut, "iout", "", "Write the sheet with marked answers to this image file")
	fs.StringVar(&opts.VectorOut, "vout", "", "Write the recovered grid to this .svg or .png file")
	fs.DurationVar(&opts.FetchTimeout, "timeout", 30*time.Second, "HTTP timeout for --url")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Grade sheets received from the configured stations over MQTT")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve the grading HTTP API")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.File == "" && fs.NArg() > 0 {
		opts.File = fs.Arg(0)
	}

	_, _ = fmt.Fprintf(out, "bubblegrade version: %s\n", Version)
	app.ApplyOptions(opts)

	if opts.MqttMode || opts.HttpMode {
		return app.RunService()
	}

	if opts.File == "" && opts.URL == "" {
		_, _ = fmt.Fprintln(out, "No sheet given.")
		_, _ = fmt.Fprintln(out, "Use --file=sheet.png (or a positional path) to grade a photo")
		_, _ = fmt.Fprintln(out, "Use --url=https://... to grade a downloaded photo")
		_, _ = fmt.Fprintln(out, "Use --comp=key.json to score against an answer key")
		_, _ = fmt.Fprintln(out, "Use --mqtt and/or --http to run the grading service")
		return nil
	}

	return app.RunGrade()
}
