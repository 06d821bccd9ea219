package parser

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"document-qa/internal/models"
	"document-qa/internal/testutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPages_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "Aspirin reduces fever.")
	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].PageContent != "Aspirin reduces fever." {
		t.Errorf("unexpected content %q", docs[0].PageContent)
	}
	if docs[0].Metadata[models.MetaSource] != "notes.txt" {
		t.Errorf("expected source notes.txt, got %v", docs[0].Metadata[models.MetaSource])
	}
	if docs[0].Metadata[models.MetaPage] != 1 {
		t.Errorf("expected page 1, got %v", docs[0].Metadata[models.MetaPage])
	}
}

func TestLoadPages_EmptyTextHasNoPages(t *testing.T) {
	path := writeFile(t, "empty.txt", "   \n\t")
	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestLoadPages_Markdown(t *testing.T) {
	path := writeFile(t, "guide.md", "# Title\n\nHello *world*.\n\n```\ncode line\n```\n")
	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	got := docs[0].PageContent
	for _, want := range []string{"Title", "Hello world.", "code line"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
	if strings.ContainsAny(got, "#*`") {
		t.Errorf("markdown syntax leaked into %q", got)
	}
}

func TestLoadPages_PPTXUsesSlideNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	slides := map[string]string{
		"ppt/slides/slide2.xml":            `<p:sld><a:t>Second</a:t><a:t>slide</a:t></p:sld>`,
		"ppt/slides/slide1.xml":            `<p:sld><a:t>First &amp; foremost</a:t></p:sld>`,
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	}
	for name, body := range slides {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(docs))
	}
	if docs[0].PageContent != "First & foremost" || docs[0].Metadata[models.MetaPage] != 1 {
		t.Errorf("unexpected first slide %+v", docs[0])
	}
	if docs[1].PageContent != "Second slide" || docs[1].Metadata[models.MetaPage] != 2 {
		t.Errorf("unexpected second slide %+v", docs[1])
	}
}

func TestLoadPages_Unsupported(t *testing.T) {
	path := writeFile(t, "image.png", "not a document")
	_, err := LoadPages(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadPages_CorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is not a pdf")
	if _, err := LoadPages(path); err == nil {
		t.Fatal("expected an error for a corrupt pdf")
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	found := false
	for _, e := range exts {
		if e == ".pdf" {
			found = true
		}
	}
	if !found {
		t.Errorf("pdf must be supported, got %v", exts)
	}
}

func TestLoadPages_PDFOneDocumentPerPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaflet.pdf")
	pdf := testutil.MinimalPDF("Paracetamol dosage for adults.", "", "Store below 25 degrees.")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	// the blank second page is skipped but keeps its number
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if !strings.Contains(docs[0].PageContent, "Paracetamol dosage for adults.") || docs[0].Metadata[models.MetaPage] != 1 {
		t.Errorf("unexpected first page %+v", docs[0])
	}
	if !strings.Contains(docs[1].PageContent, "Store below 25 degrees.") || docs[1].Metadata[models.MetaPage] != 3 {
		t.Errorf("unexpected third page %+v", docs[1])
	}
	if docs[0].Metadata[models.MetaSource] != "leaflet.pdf" {
		t.Errorf("unexpected source %v", docs[0].Metadata[models.MetaSource])
	}
}

// writeDocxTemplate writes the smallest zip the docx reader accepts, with a
// single placeholder run per paragraph.
func writeDocxTemplate(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			`<w:p><w:r><w:t>TITLE</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t xml:space="preserve">BODY</w:t></w:r><w:r><w:t> twice daily.</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
	}
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadPages_DOCX(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "template.docx")
	writeDocxTemplate(t, template)

	r, err := docx.ReadDocxFile(template)
	if err != nil {
		t.Fatalf("ReadDocxFile: %v", err)
	}
	doc := r.Editable()
	if err := doc.Replace("TITLE", "Ibuprofen & food", -1); err != nil {
		t.Fatal(err)
	}
	if err := doc.Replace("BODY", "Take 200mg", -1); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "advice.docx")
	if err := doc.WriteToFile(path); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}
	r.Close()

	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	want := "Ibuprofen & food\n\nTake 200mg twice daily."
	if docs[0].PageContent != want {
		t.Errorf("expected %q, got %q", want, docs[0].PageContent)
	}
}

func TestLoadPages_XLSXOnePagePerSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doses.xlsx")
	file := xlsx.NewFile()
	for _, name := range []string{"Adults", "Children"} {
		sheet, err := file.AddSheet(name)
		if err != nil {
			t.Fatal(err)
		}
		row := sheet.AddRow()
		row.AddCell().Value = "Drug"
		row.AddCell().Value = "Dose"
		row = sheet.AddRow()
		row.AddCell().Value = "Paracetamol"
		row.AddCell().Value = name + " dose"
	}
	if err := file.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 sheets, got %d", len(docs))
	}
	want := "Sheet: Children\nDrug\tDose\nParacetamol\tChildren dose\n"
	if docs[1].PageContent != want || docs[1].Metadata[models.MetaPage] != 2 {
		t.Errorf("unexpected second sheet %q (page %v)", docs[1].PageContent, docs[1].Metadata[models.MetaPage])
	}
}

func TestLoadPages_XLSM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.xlsm")
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "Item"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "Count"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "Insulin"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B2", 12); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	docs, err := LoadPages(path)
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(docs))
	}
	want := "Sheet: Sheet1\nItem\tCount\nInsulin\t12\n"
	if docs[0].PageContent != want {
		t.Errorf("expected %q, got %q", want, docs[0].PageContent)
	}
}
