package ingest

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var ErrOCRUnavailable = errors.New("ocr engine unavailable")

// runOCR invokes the tesseract binary in TSV mode and keeps words at or
// above the configured confidence cutoff.
func (p *Parser) runOCR(imagePath string) (string, error) {
	if _, err := exec.LookPath(p.opts.OCRBinary); err != nil {
		return "", fmt.Errorf("%w: %s not found", ErrOCRUnavailable, p.opts.OCRBinary)
	}

	cmd := exec.Command(p.opts.OCRBinary, imagePath, "stdout", "-l", "chi_sim+eng", "tsv")
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("ocr failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("ocr execution: %w", err)
	}

	return parseTSV(string(output), p.opts.OCRMinConfidence), nil
}

// parseTSV assembles recognized words into lines, dropping low-confidence
// words. Tesseract TSV rows are:
// level page block par line word left top width height conf text
func parseTSV(tsv string, minConfidence int) string {
	var lines []string
	var current []string
	lastLine := ""

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 {
			continue // header
		}
		fields := strings.Split(row, "\t")
		if len(fields) < 12 {
			continue
		}

		lineKey := fields[1] + ":" + fields[2] + ":" + fields[3] + ":" + fields[4]
		if lineKey != lastLine {
			if len(current) > 0 {
				lines = append(lines, strings.Join(current, " "))
			}
			current = nil
			lastLine = lineKey
		}

		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < float64(minConfidence) {
			continue
		}
		word := strings.TrimSpace(fields[11])
		if word != "" {
			current = append(current, word)
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return strings.Join(lines, "\n")
}
