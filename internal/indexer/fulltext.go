package indexer

import (
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mcp-codeintel-server/internal/domain"
	"github.com/sha1n/mcp-codeintel-server/internal/ignore"
)

const (
	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	// MaxBatchBytes is the maximum bytes per batch (10MB)
	MaxBatchBytes = 10 * 1024 * 1024

	// SymbolBoost weights symbol matches over plain content matches.
	SymbolBoost = 5.0
)

// ContentHit is one full-text search hit.
type ContentHit struct {
	Path      string   `json:"path"`
	Language  string   `json:"language"`
	Score     float64  `json:"score"`
	Fragments []string `json:"fragments,omitempty"`
}

// CreateIndexMapping creates the bleve mapping for code documents.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Content field - analyzed for full-text search
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(domain.CodeFieldContent, contentField)

	// Symbols - analyzed, not stored
	symbolsField := bleve.NewTextFieldMapping()
	symbolsField.Analyzer = standard.Name
	symbolsField.Store = false
	docMapping.AddFieldMappingsAt(domain.CodeFieldSymbols, symbolsField)

	for _, name := range []string{domain.CodeFieldExtension, domain.CodeFieldFilePath, domain.CodeFieldLanguage} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	// ID - stored but not indexed (we use the document ID)
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.CodeFieldID, idField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

func newTextIndex() (bleve.Index, error) {
	return bleve.NewMemOnly(CreateIndexMapping())
}

func closeTextIndex(idx bleve.Index) {
	if idx == nil {
		return
	}
	if err := idx.Close(); err != nil {
		slog.Warn("Failed to close full-text index", "error", err)
	}
}

func (i *Indexer) textDocument(relPath string, sig domain.FileSignals, content []byte) domain.CodeDocument {
	symbols := make([]string, 0, len(sig.Functions)+len(sig.Classes)+len(sig.Exports))
	symbols = append(symbols, sig.Functions...)
	symbols = append(symbols, sig.Classes...)
	symbols = append(symbols, sig.Exports...)

	return domain.CodeDocument{
		ID:        relPath,
		FilePath:  relPath,
		Extension: strings.ToLower(ignore.GetFileExtension(relPath)),
		Language:  LanguageOf(relPath),
		Symbols:   symbols,
		Content:   string(content),
	}
}

// textBatch accumulates documents and flushes them in bounded batches.
type textBatch struct {
	index bleve.Index
	batch *bleve.Batch
	size  int
	bytes int
}

func newTextBatch(idx bleve.Index) *textBatch {
	b := &textBatch{index: idx}
	if idx != nil {
		b.batch = idx.NewBatch()
	}
	return b
}

func (b *textBatch) add(doc domain.CodeDocument) {
	if b.index == nil {
		return
	}
	if err := b.batch.Index(doc.ID, doc); err != nil {
		slog.Debug("Skipping full-text document", "path", doc.FilePath, "error", err)
		return
	}
	b.size++
	b.bytes += len(doc.Content)
	if b.size >= MaxBatchSize || b.bytes >= MaxBatchBytes {
		b.flush()
	}
}

func (b *textBatch) flush() {
	if b.index == nil || b.size == 0 {
		return
	}
	if err := b.index.Batch(b.batch); err != nil {
		slog.Warn("Full-text batch failed", "error", err)
	}
	b.batch = b.index.NewBatch()
	b.size = 0
	b.bytes = 0
}

// SearchContent runs a full-text query over file contents and symbol names.
// A non-positive limit uses the indexer's result cap. Failures degrade to no hits.
// The bleve index is shared between generations and written before the swap,
// so hits are limited to paths of the generation loaded here.
func (i *Indexer) SearchContent(queryStr string, extension string, limit int) []ContentHit {
	if strings.TrimSpace(queryStr) == "" {
		return []ContentHit{}
	}
	if limit <= 0 {
		limit = i.maxResults
	}

	i.textMu.RLock()
	defer i.textMu.RUnlock()

	s := i.current.Load()
	if s.text == nil {
		return []ContentHit{}
	}

	req := bleve.NewSearchRequest(buildContentQuery(queryStr, extension))
	req.Size = limit
	req.Fields = []string{domain.CodeFieldFilePath, domain.CodeFieldLanguage}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(domain.CodeFieldContent)

	res, err := s.text.Search(req)
	if err != nil {
		slog.Warn("Full-text search failed", "query", queryStr, "error", err)
		return []ContentHit{}
	}

	hits := make([]ContentHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		if _, indexed := s.files[h.ID]; !indexed {
			continue
		}
		hit := ContentHit{Path: h.ID, Score: h.Score}
		if v, ok := h.Fields[domain.CodeFieldLanguage].(string); ok {
			hit.Language = v
		}
		if frags, ok := h.Fragments[domain.CodeFieldContent]; ok {
			hit.Fragments = frags
		}
		hits = append(hits, hit)
	}
	return hits
}

// buildContentQuery matches content or boosted symbols, optionally filtered by extension.
func buildContentQuery(queryStr, extension string) query.Query {
	contentQuery := bleve.NewMatchQuery(queryStr)
	contentQuery.SetField(domain.CodeFieldContent)

	symbolsQuery := bleve.NewMatchQuery(queryStr)
	symbolsQuery.SetField(domain.CodeFieldSymbols)
	symbolsQuery.SetBoost(SymbolBoost)

	searchQuery := bleve.NewDisjunctionQuery(contentQuery, symbolsQuery)

	if extension == "" {
		return searchQuery
	}

	extQuery := bleve.NewTermQuery(strings.ToLower(strings.TrimPrefix(extension, ".")))
	extQuery.SetField(domain.CodeFieldExtension)
	return bleve.NewConjunctionQuery(searchQuery, extQuery)
}
