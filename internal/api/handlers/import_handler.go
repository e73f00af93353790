package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/chainplan/internal/drive"
	"github.com/andresuchdata/chainplan/internal/service"
	"github.com/andresuchdata/chainplan/internal/storage"
)

// ImportSources are the remote locations an import may read from. Either
// source may be nil when it is not configured.
type ImportSources struct {
	Objects storage.ObjectStorage
	Drive   *drive.Downloader
	WorkDir string
}

type importRequest struct {
	Prefix      string `json:"prefix"`
	DriveFolder string `json:"drive_folder"`
}

type ImportHandler struct {
	importer *service.ImportService
	sources  ImportSources
}

func NewImportHandler(importer *service.ImportService, sources ImportSources) *ImportHandler {
	return &ImportHandler{importer: importer, sources: sources}
}

// Import pulls a bundle from object storage (prefix) or Google Drive
// (drive_folder) and stores it.
func (h *ImportHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var (
		summary service.ImportSummary
		err     error
	)
	switch {
	case req.Prefix != "" && req.DriveFolder != "":
		badRequest(c, "set either prefix or drive_folder, not both")
		return
	case req.Prefix != "":
		if h.sources.Objects == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage is not configured"})
			return
		}
		summary, err = h.importer.ImportObjects(c.Request.Context(), h.sources.Objects, req.Prefix, h.sources.WorkDir)
	case req.DriveFolder != "":
		if h.sources.Drive == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google drive is not configured"})
			return
		}
		summary, err = h.importer.ImportDrive(c.Request.Context(), h.sources.Drive, req.DriveFolder, h.sources.WorkDir)
	default:
		badRequest(c, "prefix or drive_folder is required")
		return
	}

	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}
