package biz

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"dealtracker/cmd/legalpack-service/internal/domain"
)

// Expander unpacks an uploaded ZIP and runs every member through text
// extraction. Members are processed in lexicographic order, so the same
// archive always yields the same document sequence.
type Expander struct {
	extractor *Extractor
	counter   *TokenCounter
	logger    *zap.Logger
}

// NewExpander builds an Expander.
func NewExpander(extractor *Extractor, counter *TokenCounter, logger *zap.Logger) *Expander {
	return &Expander{extractor: extractor, counter: counter, logger: logger}
}

// Expand unpacks zipData into a scoped temp directory, extracts text
// from each member, and returns the per-file outcome ledger. The temp
// directory is removed before returning, on every path. A corrupt
// archive is fatal; individual member failures are recorded in the
// report and processing continues.
func (e *Expander) Expand(ctx context.Context, zipData []byte) (*domain.ProcessingReport, error) {
	archive, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArchiveCorrupt, err)
	}

	tempDir, err := os.MkdirTemp("", "legalpack-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	names := make([]string, 0, len(archive.File))
	members := make(map[string]*zip.File, len(archive.File))
	for _, file := range archive.File {
		if file.FileInfo().IsDir() || skipEntry(file.Name) {
			continue
		}
		names = append(names, file.Name)
		members[file.Name] = file
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, domain.ErrArchiveEmpty
	}

	report := &domain.ProcessingReport{ProcessedAt: time.Now().UTC()}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := e.unpackMember(members[name], tempDir)
		if err != nil {
			e.logger.Warn("failed to unpack archive member",
				zap.String("member", name),
				zap.Error(err))
			report.Outcomes = append(report.Outcomes, &domain.ExtractionOutcome{
				Filename: filepath.Base(name),
				Status:   domain.OutcomeFailed,
				Reason:   err.Error(),
			})
			continue
		}

		outcome := e.processMember(ctx, name, data)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Succeeded() {
			report.TotalTokens += outcome.Document.TokenCount
		}
	}

	return report, nil
}

// processMember extracts and token-counts one member, producing either a
// document-bearing or a failure outcome.
func (e *Expander) processMember(ctx context.Context, name string, data []byte) *domain.ExtractionOutcome {
	base := filepath.Base(name)

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		documentsProcessed.WithLabelValues("failed").Inc()
		return &domain.ExtractionOutcome{
			Filename: base,
			Status:   domain.OutcomeFailed,
			Reason:   "nested archives are not supported",
		}
	}

	text, err := e.extractor.Extract(ctx, name, data)
	if err != nil {
		documentsProcessed.WithLabelValues("failed").Inc()
		return &domain.ExtractionOutcome{
			Filename: base,
			Status:   domain.OutcomeFailed,
			Reason:   err.Error(),
		}
	}

	doc := &domain.ProcessedDocument{
		Name:       base,
		Content:    text,
		CharLength: len(text),
		TokenCount: e.counter.Count(text),
	}
	documentsProcessed.WithLabelValues("succeeded").Inc()
	documentTokens.Observe(float64(doc.TokenCount))
	e.logger.Info("processed archive member",
		zap.String("member", name),
		zap.Int("chars", doc.CharLength),
		zap.Int("tokens", doc.TokenCount))

	return &domain.ExtractionOutcome{
		Filename: base,
		Status:   domain.OutcomeSucceeded,
		Document: doc,
	}
}

// unpackMember writes one archive entry under tempDir and reads it back.
// Entry paths are confined to the temp directory.
func (e *Expander) unpackMember(file *zip.File, tempDir string) ([]byte, error) {
	target := filepath.Join(tempDir, filepath.Clean(file.Name))
	if !strings.HasPrefix(target, tempDir+string(os.PathSeparator)) {
		return nil, fmt.Errorf("entry path escapes archive root: %s", file.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create member dir: %w", err)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open member: %w", err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create member file: %w", err)
	}
	if _, err := out.ReadFrom(rc); err != nil {
		out.Close()
		return nil, fmt.Errorf("write member file: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("flush member file: %w", err)
	}

	return os.ReadFile(target)
}

// skipEntry filters macOS metadata, hidden files, and editor artifacts
// out of the archive listing.
func skipEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/") {
		return true
	}
	base := filepath.Base(name)
	return strings.HasPrefix(base, "._") ||
		strings.HasPrefix(base, ".") ||
		strings.HasPrefix(base, "~")
}
