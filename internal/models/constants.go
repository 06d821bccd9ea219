package models

const (
	// TopK is the number of nearest chunks handed to the answer chain.
	TopK = 3

	NoAnswerMessage = "I'm sorry, but I couldn't find relevant information in the provided documents."

	MetaText   = "text"
	MetaSource = "source"
	MetaPage   = "page"
	MetaChunk  = "chunk"
	MetaID     = "chunk_id"
)
