package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/walson-a/atlasbot/internal/content"
)

// Embedder turns text into a fixed-length vector. Satisfied by
// *openrouter.Client; tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Builder produces the persisted vector store from portfolio records.
// A build run replaces the whole store file; there is no incremental
// update. Any embedding failure aborts the run with nothing written.
type Builder struct {
	embedder     Embedder
	storePath    string
	knowledgeDir string
	logger       *slog.Logger
}

// NewBuilder creates a Builder writing the store to storePath and the
// human-readable Markdown renderings to knowledgeDir.
func NewBuilder(embedder Embedder, storePath, knowledgeDir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		embedder:     embedder,
		storePath:    storePath,
		knowledgeDir: knowledgeDir,
		logger:       logger,
	}
}

// Build chunks and embeds every record, then writes the store file in one
// atomic replace. Returns the number of items written.
func (b *Builder) Build(ctx context.Context, p *content.Portfolio) (int, error) {
	if err := os.MkdirAll(b.knowledgeDir, 0o750); err != nil {
		return 0, fmt.Errorf("creating knowledge directory: %w", err)
	}

	var items []Item

	for _, project := range p.Projects {
		doc := ChunkProject(project)
		if err := b.writeRendering(doc.Name, doc.Content()); err != nil {
			return 0, err
		}

		for _, section := range doc.Sections {
			embedding, err := b.embedder.Embed(ctx, section)
			if err != nil {
				return 0, fmt.Errorf("embedding project %q: %w", project.Slug, err)
			}
			items = append(items, Item{
				ID:        fmt.Sprintf("project-%s-%d", project.Slug, len(items)),
				Content:   section,
				Embedding: embedding,
				Metadata:  doc.Metadata,
			})
		}
		b.logger.Debug("project indexed", "slug", project.Slug, "chunks", len(doc.Sections))
	}

	timeline := ChunkTimeline(p.Profile.DisplayName, p.Timeline)
	if err := b.writeRendering(timeline.Name, timeline.Content()); err != nil {
		return 0, err
	}
	for _, section := range timeline.Sections {
		embedding, err := b.embedder.Embed(ctx, section)
		if err != nil {
			return 0, fmt.Errorf("embedding timeline: %w", err)
		}
		items = append(items, Item{
			ID:        fmt.Sprintf("timeline-%d", len(items)),
			Content:   section,
			Embedding: embedding,
			Metadata:  timeline.Metadata,
		})
	}

	summary := GlobalSummary(p)
	if err := b.writeRendering("global-summary", summary); err != nil {
		return 0, err
	}
	summaryEmbedding, err := b.embedder.Embed(ctx, summary)
	if err != nil {
		return 0, fmt.Errorf("embedding global summary: %w", err)
	}
	items = append(items, Item{
		ID:        GlobalSummaryID,
		Content:   summary,
		Embedding: summaryEmbedding,
		Metadata:  map[string]string{"type": "summary", "priority": "critical"},
	})

	if err := b.writeStore(items); err != nil {
		return 0, err
	}

	b.logger.Info("vector store written", "path", b.storePath, "items", len(items))
	return len(items), nil
}

// writeRendering saves the Markdown rendering of one source document.
// These files are debugging artifacts; nothing reads them back.
func (b *Builder) writeRendering(name, text string) error {
	path := filepath.Join(b.knowledgeDir, name+".md")
	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// writeStore replaces the store file atomically: write to a temp file in
// the same directory, then rename over the old store. Readers never see a
// partially written file.
func (b *Builder) writeStore(items []Item) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	dir := filepath.Dir(b.storePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vector-store-*.json")
	if err != nil {
		return fmt.Errorf("creating temp store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp store: %w", err)
	}

	if err := os.Rename(tmpName, b.storePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}
