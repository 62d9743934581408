// Package handler contains the HTTP controllers.
package handler

import (
	"errors"
	"net/http"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/repository"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/service"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the catalog version administration API.
type CatalogHandler struct {
	catalogService service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler instance.
func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// IngestRequest is the body of POST /catalog/ingest. The raw catalog file
// must already exist in the bucket under ObjectName.
type IngestRequest struct {
	VersionID        string `json:"versionId" binding:"required"`
	ObjectName       string `json:"objectName" binding:"required"`
	DeclaredChecksum string `json:"declaredChecksum" binding:"required"`
}

// Ingest registers a catalog version and enqueues its ingestion.
func (h *CatalogHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	version, err := h.catalogService.Ingest(c.Request.Context(), req.VersionID, req.ObjectName, req.DeclaredChecksum)
	if err != nil {
		log.Error("Ingest: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "catalog version registered, ingestion enqueued",
		"data":    version,
	})
}

// Activate promotes an EMBEDDED catalog version to ACTIVE.
func (h *CatalogHandler) Activate(c *gin.Context) {
	versionID := c.Param("versionId")
	if versionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing version ID"})
		return
	}

	if err := h.catalogService.Activate(versionID); err != nil {
		log.Error("Activate: failed", err)
		switch {
		case errors.Is(err, repository.ErrVersionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrInvalidTransition),
			errors.Is(err, repository.ErrChecksumMismatch):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "catalog version activated",
		"data":    gin.H{"versionId": versionID},
	})
}

// ListVersions returns every catalog version with its state.
func (h *CatalogHandler) ListVersions(c *gin.Context) {
	versions, err := h.catalogService.Versions()
	if err != nil {
		log.Error("ListVersions: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list catalog versions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "catalog versions listed",
		"data":    versions,
	})
}

// GetVersion returns a single catalog version.
func (h *CatalogHandler) GetVersion(c *gin.Context) {
	versionID := c.Param("versionId")
	version, err := h.catalogService.Version(versionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error("GetVersion: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load catalog version"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "catalog version loaded",
		"data":    version,
	})
}

// GetActive returns the currently active catalog version, if any.
func (h *CatalogHandler) GetActive(c *gin.Context) {
	version, err := h.catalogService.Active()
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveVersion) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error("GetActive: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load active catalog version"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "active catalog version loaded",
		"data":    version,
	})
}
