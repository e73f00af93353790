package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/chainplan/internal/ingest"
)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader copies the spreadsheets of one Drive folder to local disk.
type Downloader struct {
	source FileSource
}

func NewDownloader(source FileSource) *Downloader {
	return &Downloader{source: source}
}

// DownloadFolder downloads every CSV and XLSX file of the folder into
// DownloadDir and returns the local CSV paths. XLSX files are converted from
// their first sheet and the downloaded workbook is removed afterwards.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ingest.IsSpreadsheet(f.Name) {
			continue
		}

		name := filepath.Base(f.Name)
		localPath := filepath.Join(opts.DownloadDir, name)
		if err := d.fetch(ctx, f.ID, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		if strings.EqualFold(filepath.Ext(name), ".xlsx") {
			csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
			if err := ingest.ConvertXLSXToCSV(localPath, csvPath); err != nil {
				return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
			}
			if err := os.Remove(localPath); err != nil {
				log.Warn().Err(err).Str("file", localPath).Msg("failed to remove downloaded workbook")
			}
			localPath = csvPath
		}

		log.Debug().Str("file", f.Name).Str("path", localPath).Msg("downloaded drive file")
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) fetch(ctx context.Context, fileID, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := d.source.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
