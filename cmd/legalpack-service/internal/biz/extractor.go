package biz

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"dealtracker/cmd/legalpack-service/internal/conf"
	"dealtracker/cmd/legalpack-service/internal/domain"
)

// PageRasterizer renders a single PDF page to an image for OCR.
type PageRasterizer interface {
	RenderPage(ctx context.Context, pdfData []byte, pageNum int, dpi int) ([]byte, error)
}

// TextDetector runs OCR over an image and returns the detected text.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte) (string, error)
}

// Extractor converts uploaded files into plain text. PDF pages with too
// little native text are retried through OCR when a detector is wired.
type Extractor struct {
	rasterizer       PageRasterizer
	detector         TextDetector
	minPageTextChars int
	maxPDFPages      int
	renderDPI        int
	logger           *zap.Logger
}

// NewExtractor builds an Extractor. rasterizer and detector may be nil,
// which disables the OCR fallback for scanned pages.
func NewExtractor(cfg *conf.Config, rasterizer PageRasterizer, detector TextDetector, logger *zap.Logger) *Extractor {
	e := &Extractor{
		minPageTextChars: cfg.Extract.MinPageTextChars,
		maxPDFPages:      cfg.Extract.MaxPDFPages,
		renderDPI:        cfg.OCR.RenderDPI,
		logger:           logger,
	}
	if cfg.OCR.Enabled {
		e.rasterizer = rasterizer
		e.detector = detector
	}
	return e
}

// Extract returns the text content of the named file. Unsupported file
// types return domain.ErrUnsupportedFileType so callers can record the
// skip without aborting the rest of an upload.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		return e.extractPDF(ctx, filename, data)
	case ".docx", ".doc":
		return e.extractWord(filename, data)
	case ".txt", ".md", ".text":
		return decodeText(data), nil
	default:
		e.logger.Warn("unsupported file type",
			zap.String("filename", filename),
			zap.String("extension", ext))
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, ext)
	}
}

// extractPDF walks the document page by page. Pages whose native text
// falls below the minimum are assumed scanned and routed through OCR.
// Processing stops at the page cap with a truncation notice, so one
// enormous scan cannot starve the rest of the pack.
func (e *Extractor) extractPDF(ctx context.Context, filename string, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, filename, err)
	}

	numPages := reader.NumPage()
	pagesToProcess := numPages
	if pagesToProcess > e.maxPDFPages {
		pagesToProcess = e.maxPDFPages
	}

	var pageTexts []string
	for pageNum := 1; pageNum <= pagesToProcess; pageNum++ {
		pageText := e.pageText(reader, filename, pageNum)

		if len(strings.TrimSpace(pageText)) < e.minPageTextChars && e.rasterizer != nil && e.detector != nil {
			ocrText, ocrErr := e.ocrPage(ctx, data, pageNum)
			if ocrErr != nil {
				e.logger.Warn("ocr fallback failed, keeping native page text",
					zap.String("filename", filename),
					zap.Int("page", pageNum),
					zap.Error(ocrErr))
			} else if len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(pageText)) {
				pageText = ocrText
			}
		}

		pageTexts = append(pageTexts, pageText)
	}

	var textBuilder strings.Builder
	textBuilder.WriteString(strings.Join(pageTexts, "\n"))
	textBuilder.WriteString("\n")

	if numPages > e.maxPDFPages {
		e.logger.Warn("pdf exceeds page cap, truncating",
			zap.String("filename", filename),
			zap.Int("pages", numPages),
			zap.Int("cap", e.maxPDFPages))
		fmt.Fprintf(&textBuilder, "[Document truncated: processed first %d of %d pages]\n", e.maxPDFPages, numPages)
	}

	result := strings.TrimSpace(textBuilder.String())
	if result == "" {
		return "", fmt.Errorf("%w: %s: no text content", domain.ErrExtractionFailed, filename)
	}
	return result, nil
}

// pageText extracts the native text of one page. A page that fails to
// parse yields empty text instead of aborting the document; the pdf
// library panics on some malformed content streams, so the recover is
// load-bearing. The page handle goes out of scope before the next
// iteration, keeping memory flat across large documents.
func (e *Extractor) pageText(reader *pdf.Reader, filename string, pageNum int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("page parse panicked, treating page as empty",
				zap.String("filename", filename),
				zap.Int("page", pageNum),
				zap.Any("reason", r))
			text = ""
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}

	content, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.Warn("page text extraction failed, treating page as empty",
			zap.String("filename", filename),
			zap.Int("page", pageNum),
			zap.Error(err))
		return ""
	}
	return content
}

func (e *Extractor) ocrPage(ctx context.Context, pdfData []byte, pageNum int) (string, error) {
	ocrCalls.Inc()
	image, err := e.rasterizer.RenderPage(ctx, pdfData, pageNum, e.renderDPI)
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", pageNum, err)
	}
	text, err := e.detector.DetectText(ctx, image)
	if err != nil {
		return "", fmt.Errorf("detect text on page %d: %w", pageNum, err)
	}
	return text, nil
}

// extractWord tries three readers in order: the structured docx parser,
// a raw scan of word/document.xml, and finally a printable-character
// sweep of the bytes. Legacy .doc files usually land on the last rung.
func (e *Extractor) extractWord(filename string, data []byte) (string, error) {
	if text, err := parseDocx(data); err == nil && text != "" {
		return text, nil
	} else if err != nil {
		e.logger.Debug("docx parser failed, trying document.xml",
			zap.String("filename", filename),
			zap.Error(err))
	}

	if text, err := readDocumentXML(data); err == nil && text != "" {
		return text, nil
	}

	text := printableText(data)
	if text == "" {
		return "", fmt.Errorf("%w: %s: no readable text", domain.ErrExtractionFailed, filename)
	}
	e.logger.Warn("word document read as raw bytes, formatting lost",
		zap.String("filename", filename))
	return text, nil
}

func parseDocx(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX: %w", err)
	}

	var builder strings.Builder
	for _, item := range doc.Document.Body.Items {
		if stringer, ok := item.(interface{ String() string }); ok {
			builder.WriteString(stringer.String())
			builder.WriteString("\n")
		}
	}
	return strings.TrimSpace(builder.String()), nil
}

// readDocumentXML pulls word/document.xml out of the docx container and
// collects its character data. It recovers documents the structured
// parser rejects.
func readDocumentXML(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a docx container: %w", err)
	}

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return collectXMLText(rc)
	}
	return "", fmt.Errorf("word/document.xml not found")
}

func collectXMLText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var builder strings.Builder
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			} else if t.Name.Local == "p" {
				builder.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				builder.Write(t)
			}
		}
	}
	return strings.TrimSpace(builder.String()), nil
}

// decodeText interprets raw bytes as utf-8 when valid, then cp1252, then
// latin-1. cp1252 covers the smart quotes and dashes word processors
// emit; latin-1 accepts any byte sequence and is the terminal rung.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
		text := string(decoded)
		if !strings.ContainsRune(text, utf8.RuneError) {
			return text
		}
	}
	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(decoded)
}

// printableText decodes raw bytes and keeps only printable runs. Used as
// the last rung for legacy binary word documents.
func printableText(data []byte) string {
	decoded := decodeText(data)
	var builder strings.Builder
	lastSpace := false
	for _, r := range decoded {
		switch {
		case r == '\n' || r == '\t' || unicode.IsPrint(r):
			builder.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			builder.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(builder.String())
}
