package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlesyk/gradpipe/app/database"
)

func NewHandler(admissionRepo database.AdmissionRepository,
	watermarkRepo database.WatermarkRepository) *Handler {
	return &Handler{
		admissionRepo: admissionRepo,
		watermarkRepo: watermarkRepo,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.admissionRepo.GetRecordCount(); err == nil {
		health["records"] = count
	}

	c.JSON(http.StatusOK, health)
}

// GetStatus reports the ingestion state straight from the database, so it
// stays accurate even when the broker is down.
func (h *Handler) GetStatus(c *gin.Context) {
	count, err := h.admissionRepo.GetRecordCount()
	if err != nil {
		slog.Error("Database error", "operation", "get_record_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	watermarks, err := h.watermarkRepo.GetAllWatermarks()
	if err != nil {
		slog.Error("Database error", "operation", "get_watermarks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	sources := make([]map[string]interface{}, 0, len(watermarks))
	for _, wm := range watermarks {
		entry := map[string]interface{}{
			"source":     wm.Source,
			"updated_at": wm.UpdatedAt.Format(time.RFC3339),
		}
		if wm.LastSeen != nil {
			entry["last_seen"] = *wm.LastSeen
		}
		sources = append(sources, entry)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"records":    count,
		"watermarks": sources,
	})
}
