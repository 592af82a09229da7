// Command narrate converts a text file into a single audio file, one spoken
// line at a time with a pause between lines.
//
//	narrate -in notes.txt -pause 1.5 -lang en
//
// Backends are configured through the same environment variables as the
// server (SPEECH_BACKEND, CODEC, ...).
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexiqai/narrator/internal/codec"
	"github.com/lexiqai/narrator/internal/config"
	"github.com/lexiqai/narrator/internal/observability"
	"github.com/lexiqai/narrator/internal/pipeline"
	"github.com/lexiqai/narrator/internal/tts"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "narrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	in := flag.String("in", "", "input .txt file (required)")
	pause := flag.Float64("pause", float64(cfg.PauseDefaultMS)/1000, "pause between lines in seconds")
	lang := flag.String("lang", cfg.SpeechLanguage, "language of the text (BCP 47)")
	format := flag.String("format", cfg.OutputFormat, "output format: mp3 or wav")
	out := flag.String("out", "", "output file (default <input>_audio.<format>)")
	quiet := flag.Bool("q", false, "do not print progress")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return fmt.Errorf("-in is required")
	}
	if !strings.EqualFold(filepath.Ext(*in), ".txt") {
		return fmt.Errorf("%s: only .txt files are accepted", *in)
	}

	pauseMS := int(math.Round(*pause * 1000))
	if pauseMS < cfg.PauseMinMS || pauseMS > cfg.PauseMaxMS {
		return fmt.Errorf("-pause must be between %.1f and %.1f seconds", float64(cfg.PauseMinMS)/1000, float64(cfg.PauseMaxMS)/1000)
	}

	text, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	if int64(len(text)) > cfg.MaxInputBytes {
		return fmt.Errorf("%s exceeds %d bytes", *in, cfg.MaxInputBytes)
	}

	// Logs go to stderr and stay out of the way unless asked for
	logLevel := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		logLevel = "warn"
	}
	observability.InitLogger(logLevel, true)
	logger := observability.GetLogger()

	synth, err := tts.New(cfg, logger)
	if err != nil {
		return err
	}
	audioCodec, err := codec.New(cfg.Codec, cfg.FFmpegCommand, cfg.AudioFormat(), cfg.MP3BitrateKbps)
	if err != nil {
		return err
	}
	engine, err := pipeline.NewEngine(synth, audioCodec, pipeline.Options{
		Format:          cfg.AudioFormat(),
		UnitTimeout:     cfg.SpeechTimeoutDuration(),
		DefaultLanguage: cfg.SpeechLanguage,
		OutputFormat:    codec.Format(cfg.OutputFormat),
	})
	if err != nil {
		return err
	}

	outputFormat, err := engine.CheckFormat(*format)
	if err != nil {
		return err
	}
	if *out == "" {
		base := strings.TrimSuffix(*in, filepath.Ext(*in))
		*out = fmt.Sprintf("%s_audio.%s", base, outputFormat.Extension())
	}

	onProgress := func(p pipeline.Progress) {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "\r[%3.0f%%] %d/%d lines", p.Fraction()*100, p.Completed, p.Total)
		}
	}

	res := engine.Execute(context.Background(), pipeline.Request{
		Text:     string(text),
		PauseMS:  pauseMS,
		Language: *lang,
		Format:   outputFormat,
	}, onProgress)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if !res.OK() {
		return res.Err
	}

	if err := os.WriteFile(*out, res.Audio, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s (%d lines, %s)\n", *out, res.Units, res.Duration.Round(100*time.Millisecond))
	return nil
}
