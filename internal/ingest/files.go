package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/chainplan/internal/catalog"
	"github.com/andresuchdata/chainplan/internal/domain"
)

// IsSpreadsheet reports whether path has an extension the readers accept.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Open returns a CSV stream for path. XLSX files are converted in memory from
// their first sheet.
func Open(path string) (io.ReadCloser, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		var buf bytes.Buffer
		if err := writeXLSXAsCSV(path, &buf); err != nil {
			return nil, err
		}
		return io.NopCloser(&buf), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// ConvertXLSXToCSV converts the first sheet of an XLSX file to a CSV file.
func ConvertXLSXToCSV(xlsxPath, csvPath string) error {
	out, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create csv file %s: %w", csvPath, err)
	}
	if err := writeXLSXAsCSV(xlsxPath, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeXLSXAsCSV(xlsxPath string, dst io.Writer) error {
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return fmt.Errorf("failed to open xlsx file %s: %w", xlsxPath, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("xlsx file %s has no sheets", xlsxPath)
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	w := csv.NewWriter(dst)
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("failed to read row from %s: %w", xlsxPath, err)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	if err := rows.Error(); err != nil {
		return fmt.Errorf("error iterating rows in %s: %w", xlsxPath, err)
	}

	w.Flush()
	return w.Error()
}

// BundlePaths locates the input files of one planning run. Recipes and
// ProductSales are optional.
type BundlePaths struct {
	Catalog      string
	Recipes      string
	Levels       string
	Sales        string
	ProductSales string
}

// Bundle is everything a planning run reads from files.
type Bundle struct {
	Items        []domain.InventoryItem
	Recipes      []domain.Recipe
	Levels       []domain.InventoryLevel
	Sales        []domain.HistoricalSalesRecord
	ProductSales []catalog.ProductSale
}

var bundleStems = map[string][]string{
	"catalog":       {"catalog", "items", "inventory_items"},
	"recipes":       {"recipes", "recipe"},
	"levels":        {"levels", "inventory_levels", "stock"},
	"sales":         {"sales", "sales_history"},
	"product_sales": {"product_sales"},
}

// FindBundle looks for well-known file names (catalog.csv, levels.xlsx, ...)
// directly inside dir.
func FindBundle(dir string) (BundlePaths, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BundlePaths{}, fmt.Errorf("failed to read bundle dir %s: %w", dir, err)
	}

	found := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !IsSpreadsheet(e.Name()) {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		for kind, names := range bundleStems {
			for _, n := range names {
				if stem == n {
					if _, dup := found[kind]; !dup {
						found[kind] = filepath.Join(dir, e.Name())
					}
				}
			}
		}
	}

	paths := BundlePaths{
		Catalog:      found["catalog"],
		Recipes:      found["recipes"],
		Levels:       found["levels"],
		Sales:        found["sales"],
		ProductSales: found["product_sales"],
	}
	if paths.Catalog == "" || paths.Levels == "" || (paths.Sales == "" && paths.ProductSales == "") {
		return paths, fmt.Errorf("bundle in %s is incomplete: need catalog, levels and sales files", dir)
	}
	return paths, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, []domain.Diagnostic, error)) ([]T, []domain.Diagnostic, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	return read(rc)
}

// LoadBundle reads every file named in paths. Row-level problems come back as
// diagnostics; unreadable files or missing columns are errors.
func LoadBundle(paths BundlePaths) (Bundle, []domain.Diagnostic, error) {
	var (
		b     Bundle
		diags []domain.Diagnostic
		d     []domain.Diagnostic
		err   error
	)

	if paths.Catalog == "" {
		return b, nil, fmt.Errorf("catalog file is required")
	}
	if b.Items, d, err = readFile(paths.Catalog, ReadCatalog); err != nil {
		return b, diags, err
	}
	diags = append(diags, d...)

	if paths.Recipes != "" {
		if b.Recipes, d, err = readFile(paths.Recipes, ReadRecipes); err != nil {
			return b, diags, err
		}
		diags = append(diags, d...)
	}

	if paths.Levels != "" {
		if b.Levels, d, err = readFile(paths.Levels, ReadLevels); err != nil {
			return b, diags, err
		}
		diags = append(diags, d...)
	}

	if paths.Sales != "" {
		if b.Sales, d, err = readFile(paths.Sales, ReadSales); err != nil {
			return b, diags, err
		}
		diags = append(diags, d...)
	}

	if paths.ProductSales != "" {
		if b.ProductSales, d, err = readFile(paths.ProductSales, ReadProductSales); err != nil {
			return b, diags, err
		}
		diags = append(diags, d...)
	}

	return b, diags, nil
}
