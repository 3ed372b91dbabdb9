package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// column index of the confidence value in tesseract's TSV output
const tsvConfCol = 10

func (e *Extractor) tesseractArgs(imagePath string) []string {
	args := []string{imagePath, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}

func (e *Extractor) tesseract(ctx context.Context, imagePath string) (string, float32, error) {
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(imagePath)...)
	if err != nil {
		return "", 0, fmt.Errorf("tesseract: %w", err)
	}
	text := Normalize(reBoxNoise.ReplaceAllString(string(out), ""))
	conf := heuristicConfidence(text)

	if e.cfg.EnableTSVConfidence {
		if tsvConf, err := e.tesseractTSVConfidence(ctx, imagePath); err != nil {
			e.logger.Debug("ocr.tsv.skipped", "image", imagePath, "error", err)
		} else {
			conf = blendConfidence(tsvConf, conf)
		}
	}
	return text, conf, nil
}

// tesseractTSVConfidence reruns the page in TSV mode and averages the
// per-word confidence column.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, imagePath string) (float32, error) {
	args := append(e.tesseractArgs(imagePath), "tsv")
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract tsv: %w", err)
	}

	var sum float64
	var count int
	for i, line := range strings.Split(string(out), "\n") {
		if i == 0 { // header row
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) <= tsvConfCol {
			continue
		}
		raw := strings.TrimSpace(cols[tsvConfCol])
		if raw == "" || raw == "-1" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("no confidence values in tsv output")
	}
	return float32(sum / float64(count) / 100.0), nil
}
