package models

import "io"

// Upload is a file received for ingestion together with its original name.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Chunk represents a split piece of a document with its metadata
type Chunk struct {
	ID       string
	Content  string
	Source   string
	Page     int
	Index    int
	Metadata map[string]string
}

// Record is a single entry written to the vector index.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Match is a record returned by a similarity query, most similar first.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Answer is the response returned for a question.
type Answer struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// FileReport describes one ingested file.
type FileReport struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Chunks   int    `json:"chunks"`
}

// IngestReport lists the files fully written to the index, in order.
type IngestReport struct {
	Files []FileReport `json:"files"`
}

func (r *IngestReport) TotalChunks() int {
	total := 0
	for _, f := range r.Files {
		total += f.Chunks
	}
	return total
}
