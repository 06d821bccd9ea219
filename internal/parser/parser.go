package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"document-qa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/tmc/langchaingo/schema"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

var (
	slideNameRe  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	slideTextRe  = regexp.MustCompile(`(?s)<a:t>(.*?)</a:t>`)
	docxParaRe   = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe   = regexp.MustCompile(`(?s)<w:t(?: [^>]*)?>(.*?)</w:t>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// LoadPages reads the file at filePath and returns one document per page,
// slide or sheet. Formats without pages yield a single document.
// Every document carries the file name as "source" and a 1-based "page".
func LoadPages(filePath string) ([]schema.Document, error) {
	var (
		pages []string
		err   error
	)

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		pages, err = parsePDF(filePath)
	case ".docx":
		pages, err = parseDOCX(filePath)
	case ".pptx":
		pages, err = parsePPTX(filePath)
	case ".xlsx":
		pages, err = parseXLSX(filePath)
	case ".xlsm", ".xltx":
		pages, err = parseExcelize(filePath)
	case ".md", ".markdown":
		pages, err = parseMarkdown(filePath)
	case ".txt":
		pages, err = parseText(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	source := filepath.Base(filePath)
	var docs []schema.Document
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: page,
			Metadata: map[string]any{
				models.MetaSource: source,
				models.MetaPage:   i + 1,
			},
		})
	}
	return docs, nil
}

func parsePDF(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// GetContent returns the raw document.xml body
	content := r.Editable().GetContent()
	var paragraphs []string
	for _, para := range docxParaRe.FindAllString(content, -1) {
		var line strings.Builder
		for _, m := range docxTextRe.FindAllStringSubmatch(para, -1) {
			line.WriteString(html.UnescapeString(m[1]))
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}
	// DOCX has no page numbers
	return []string{strings.Join(paragraphs, "\n\n")}, nil
}

func parsePPTX(filePath string) ([]string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	slides := map[int]string{}
	maxSlide := 0
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		slides[num] = extractSlideText(string(data))
		maxSlide = max(maxSlide, num)
	}

	// keep slide numbers as page numbers
	pages := make([]string, maxSlide)
	for num, content := range slides {
		pages[num-1] = content
	}
	return pages, nil
}

func extractSlideText(xmlContent string) string {
	var parts []string
	for _, m := range slideTextRe.FindAllStringSubmatch(xmlContent, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.Join(parts, " ")
}

func parseXLSX(filePath string) ([]string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		pages = append(pages, renderSheet(sheet.Name, rows))
	}
	return pages, nil
}

func parseExcelize(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	pages := make([]string, 0, len(sheets))
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		pages = append(pages, renderSheet(sheetName, rows))
	}
	return pages, nil
}

func renderSheet(name string, rows [][]string) string {
	var text strings.Builder
	fmt.Fprintf(&text, "Sheet: %s\n", name)
	empty := true
	for _, row := range rows {
		line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
		if line == "" {
			continue
		}
		empty = false
		text.WriteString(line)
		text.WriteString("\n")
	}
	if empty {
		return ""
	}
	return text.String()
}

// parseMarkdown renders markdown to plain text by walking the goldmark AST
func parseMarkdown(filePath string) ([]string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []string{markdownToText(src)}, nil
}

func markdownToText(src []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Kind() != ast.KindList {
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := blankLinesRe.ReplaceAllString(buf.String(), "\n\n")
	return strings.TrimSpace(out)
}

func parseText(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	// TXT has no pages
	return []string{string(data)}, nil
}

// SupportedExtensions lists the file extensions LoadPages accepts.
func SupportedExtensions() []string {
	exts := []string{".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".xltx", ".md", ".markdown", ".txt"}
	sort.Strings(exts)
	return exts
}
