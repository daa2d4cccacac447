package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/biz"
)

// PopplerRasterizer renders PDF pages to PNG through the poppler
// pdftoppm binary. No maintained pure-Go renderer handles the scanned
// PDFs this service sees, so page rendering shells out.
type PopplerRasterizer struct {
	binary string
	logger *zap.Logger
}

var _ biz.PageRasterizer = (*PopplerRasterizer)(nil)

// NewPopplerRasterizer builds a rasterizer using the configured
// pdftoppm binary.
func NewPopplerRasterizer(binary string, logger *zap.Logger) *PopplerRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PopplerRasterizer{binary: binary, logger: logger}
}

// Available reports whether the pdftoppm binary can be found.
func (r *PopplerRasterizer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// RenderPage renders one page of pdfData to PNG bytes. The page is
// written under a scoped temp directory that is removed before return.
func (r *PopplerRasterizer) RenderPage(ctx context.Context, pdfData []byte, pageNum int, dpi int) ([]byte, error) {
	tempDir, err := os.MkdirTemp("", "legalpack-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, "page.pdf")
	if err := os.WriteFile(pdfPath, pdfData, 0o600); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	outPrefix := filepath.Join(tempDir, "render")
	page := strconv.Itoa(pageNum)
	cmd := exec.CommandContext(ctx, r.binary,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", page,
		"-l", page,
		pdfPath, outPrefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, stderr.String())
	}

	// pdftoppm zero-pads the page suffix based on the page count, so
	// glob instead of guessing the exact name.
	matches, err := filepath.Glob(outPrefix + "-*.png")
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no output for page %d", pageNum)
	}

	image, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	r.logger.Debug("rendered pdf page for ocr",
		zap.Int("page", pageNum),
		zap.Int("bytes", len(image)))
	return image, nil
}
