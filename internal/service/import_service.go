package service

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/chainplan/internal/catalog"
	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/drive"
	"github.com/andresuchdata/chainplan/internal/ingest"
	"github.com/andresuchdata/chainplan/internal/repository"
	"github.com/andresuchdata/chainplan/internal/storage"
)

// ImportSummary counts the rows written by one import.
type ImportSummary struct {
	Items       int                 `json:"items"`
	Recipes     int                 `json:"recipes"`
	Levels      int                 `json:"levels"`
	Sales       int                 `json:"sales"`
	Diagnostics []domain.Diagnostic `json:"diagnostics,omitempty"`
}

// ImportService validates input bundles and stores them for later planning runs.
type ImportService struct {
	writer repository.SnapshotWriter
}

func NewImportService(writer repository.SnapshotWriter) *ImportService {
	return &ImportService{writer: writer}
}

// Import writes a parsed bundle. Invalid items, levels and sales rows are
// skipped with diagnostics; product sales are expanded to item usage through
// the recipes before they are stored.
func (s *ImportService) Import(ctx context.Context, b ingest.Bundle) (ImportSummary, error) {
	var summary ImportSummary

	cat, diags, err := catalog.NewStore(b.Items, b.Recipes)
	summary.Diagnostics = append(summary.Diagnostics, diags...)
	if err != nil {
		return summary, err
	}

	items := cat.Items()
	if err := s.writer.UpsertItems(ctx, items); err != nil {
		return summary, fmt.Errorf("store items: %w", err)
	}
	summary.Items = len(items)

	recipes := make([]domain.Recipe, 0, len(cat.Products()))
	for _, id := range cat.Products() {
		if r, ok := cat.Recipe(id); ok {
			recipes = append(recipes, r)
		}
	}
	if err := s.writer.UpsertRecipes(ctx, recipes); err != nil {
		return summary, fmt.Errorf("store recipes: %w", err)
	}
	summary.Recipes = len(recipes)

	levels := make([]domain.InventoryLevel, 0, len(b.Levels))
	for _, l := range b.Levels {
		if err := l.Validate(); err != nil {
			summary.Diagnostics = append(summary.Diagnostics, domain.DiagnosticFromError(l.Location, err))
			continue
		}
		if !cat.Has(l.ItemID) {
			summary.Diagnostics = append(summary.Diagnostics, domain.Diagnostic{
				Kind:     domain.DiagCatalogMismatch,
				Location: l.Location,
				ItemID:   l.ItemID,
				Message:  "stock level for unknown item",
			})
			continue
		}
		levels = append(levels, l)
	}
	if err := s.writer.UpsertLevels(ctx, levels); err != nil {
		return summary, fmt.Errorf("store levels: %w", err)
	}
	summary.Levels = len(levels)

	sales := make([]domain.HistoricalSalesRecord, 0, len(b.Sales))
	for _, r := range b.Sales {
		if err := r.Validate(); err != nil {
			summary.Diagnostics = append(summary.Diagnostics, domain.DiagnosticFromError(r.Location, err))
			continue
		}
		sales = append(sales, r)
	}
	if len(b.ProductSales) > 0 {
		expanded, d := cat.ExpandProductSales(b.ProductSales)
		summary.Diagnostics = append(summary.Diagnostics, d...)
		sales = append(sales, expanded...)
	}
	if err := s.writer.UpsertSales(ctx, sales); err != nil {
		return summary, fmt.Errorf("store sales: %w", err)
	}
	summary.Sales = len(sales)

	log.Info().
		Int("items", summary.Items).
		Int("recipes", summary.Recipes).
		Int("levels", summary.Levels).
		Int("sales", summary.Sales).
		Int("diagnostics", len(summary.Diagnostics)).
		Msg("import: bundle stored")

	return summary, nil
}

// ImportDir loads the bundle found in dir and imports it.
func (s *ImportService) ImportDir(ctx context.Context, dir string) (ImportSummary, error) {
	paths, err := ingest.FindBundle(dir)
	if err != nil {
		return ImportSummary{}, err
	}
	b, diags, err := ingest.LoadBundle(paths)
	if err != nil {
		return ImportSummary{Diagnostics: diags}, err
	}

	summary, err := s.Import(ctx, b)
	summary.Diagnostics = append(diags, summary.Diagnostics...)
	return summary, err
}

// ImportDrive downloads a Drive folder into a scratch directory below
// workDir and imports it.
func (s *ImportService) ImportDrive(ctx context.Context, d *drive.Downloader, folderID, workDir string) (ImportSummary, error) {
	dir, cleanup, err := scratchDir(workDir, "drive-")
	if err != nil {
		return ImportSummary{}, err
	}
	defer cleanup()

	if _, err := d.DownloadFolder(ctx, drive.DownloadOptions{FolderID: folderID, DownloadDir: dir}); err != nil {
		return ImportSummary{}, fmt.Errorf("download drive folder: %w", err)
	}
	return s.ImportDir(ctx, dir)
}

// ImportObjects downloads every object below prefix and imports the bundle.
func (s *ImportService) ImportObjects(ctx context.Context, store storage.ObjectStorage, prefix, workDir string) (ImportSummary, error) {
	dir, cleanup, err := scratchDir(workDir, "objects-")
	if err != nil {
		return ImportSummary{}, err
	}
	defer cleanup()

	if _, err := storage.DownloadPrefix(ctx, store, prefix, dir); err != nil {
		return ImportSummary{}, fmt.Errorf("download %s: %w", prefix, err)
	}
	return s.ImportDir(ctx, dir)
}

func scratchDir(parent, pattern string) (string, func(), error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("import: failed to remove scratch dir")
		}
	}, nil
}
