package chunker

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"document-qa/internal/models"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Splitter cuts page documents into overlapping chunks ready for embedding.
type Splitter struct {
	splitter textsplitter.TextSplitter
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split chunks every page of one file. Chunk ids are "{stem}-{i}" with i
// counting from zero across the whole file, so re-ingesting a file with the
// same name overwrites its previous entries.
func (s *Splitter) Split(filename string, pages []schema.Document) ([]models.Chunk, error) {
	docs, err := textsplitter.SplitDocuments(s.splitter, pages)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", filename, err)
	}

	stem := Stem(filename)
	chunks := make([]models.Chunk, 0, len(docs))
	for _, doc := range docs {
		content := strings.TrimSpace(doc.PageContent)
		if content == "" {
			continue
		}
		i := len(chunks)
		chunk := models.Chunk{
			ID:      fmt.Sprintf("%s-%d", stem, i),
			Content: content,
			Source:  metaString(doc.Metadata, models.MetaSource),
			Index:   i,
		}
		if chunk.Source == "" {
			chunk.Source = filepath.Base(filename)
		}
		chunk.Page, _ = strconv.Atoi(metaString(doc.Metadata, models.MetaPage))
		chunk.Metadata = chunkMetadata(doc.Metadata, chunk)
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// SplitText is Split for a single untitled page.
func (s *Splitter) SplitText(filename, text string) ([]models.Chunk, error) {
	return s.Split(filename, []schema.Document{{
		PageContent: text,
		Metadata:    map[string]any{models.MetaSource: filepath.Base(filename), models.MetaPage: 1},
	}})
}

// Stem returns the file name without directory and extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// chunkMetadata flattens page metadata and adds the chunk text, which the
// query side needs to rebuild documents from index matches.
func chunkMetadata(pageMeta map[string]any, chunk models.Chunk) map[string]string {
	meta := make(map[string]string, len(pageMeta)+4)
	for k, v := range pageMeta {
		meta[k] = fmt.Sprint(v)
	}
	meta[models.MetaSource] = chunk.Source
	meta[models.MetaChunk] = strconv.Itoa(chunk.Index)
	meta[models.MetaID] = chunk.ID
	meta[models.MetaText] = chunk.Content
	return meta
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
