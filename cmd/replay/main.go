// Command replay streams a recorded signal file through a config-driven
// processor in fixed-size chunks, exactly as a live acquisition host would,
// and reports every trigger timestamp. Supported inputs are CSV (one sample
// per line) and mono WAV.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-closedloop/pipeline"
)

func main() {
	var (
		configPath = flag.String("config", "", "pipeline configuration file (YAML)")
		inputPath  = flag.String("input", "", "recorded signal file (.csv or .wav)")
		chunkSize  = flag.Int("chunk", 1024, "samples per chunk")
	)

	flag.Parse()

	log := logrus.New()

	if *configPath == "" || *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *chunkSize < 1 {
		log.Fatalf("chunk size %d must be positive", *chunkSize)
	}

	samples, err := readSamples(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	processor, err := pipeline.NewFromFile(*configPath, pipeline.WithLogger(log))
	if err != nil {
		log.Fatalf("construct processor: %v", err)
	}

	var (
		chunks   int
		triggers int
	)

	start := time.Now()

	for offset := 0; offset < len(samples); offset += *chunkSize {
		end := offset + *chunkSize
		if end > len(samples) {
			end = len(samples)
		}

		ts, ok := processor.RunChunk(samples[offset:end])
		chunks++

		if ok {
			triggers++
			log.WithFields(logrus.Fields{
				"chunk":     chunks,
				"index":     processor.Index(),
				"timestamp": strconv.FormatFloat(ts, 'f', 6, 64),
			}).Info("trigger fired")
		}
	}

	log.WithFields(logrus.Fields{
		"samples":  len(samples),
		"chunks":   chunks,
		"triggers": triggers,
		"duration": time.Since(start).String(),
	}).Info("replay finished")
}

func readSamples(path string) ([]float64, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return readWAV(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
}

// readWAV decodes a mono WAV recording into float64 samples.
func readWAV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return monoSamples(buf)
}

func monoSamples(buf *audio.IntBuffer) ([]float64, error) {
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("recording carries no format information")
	}

	if buf.Format.NumChannels != 1 {
		return nil, fmt.Errorf("expected a mono recording, got %d channels", buf.Format.NumChannels)
	}

	return buf.AsFloatBuffer().Data, nil
}

// readCSV reads one sample per line; blank lines are skipped.
func readCSV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []float64

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		samples = append(samples, v)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}
