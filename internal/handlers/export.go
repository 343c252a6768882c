package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"strconv"
	"time"

	"beacon/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

// Exporter produces the full (already redacted) record dump, newest first.
type Exporter interface {
	Export(ctx context.Context, typ string) ([]models.Visit, error)
}

// ExportHandler handles the admin bulk export endpoint
type ExportHandler struct {
	stats Exporter
}

// NewExportHandler creates a new export handler
func NewExportHandler(stats Exporter) *ExportHandler {
	return &ExportHandler{stats: stats}
}

// csvColumns is the fixed flattened column set of the CSV export.
var csvColumns = []string{
	"id", "timestamp", "visit_date", "site", "page", "referrer",
	"event_type", "ip", "country", "device_type", "timezone", "message_count",
}

// Handle serves GET /admin/export?format=json|csv&type=all|visits|events
func (h *ExportHandler) Handle(c *fiber.Ctx) error {
	format := c.Query("format", "json")
	typ := c.Query("type", "all")

	switch typ {
	case "all", "visits", "events":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be one of all, visits, events",
		})
	}
	if format != "json" && format != "csv" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "format must be json or csv",
		})
	}

	records, err := h.stats.Export(c.Context(), typ)
	if err != nil {
		slog.Error("export failed", "type", typ, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export records",
		})
	}

	if format == "csv" {
		body, err := renderCSV(records)
		if err != nil {
			slog.Error("csv render failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to export records",
			})
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="export.csv"`)
		return c.Send(body)
	}

	return c.JSON(fiber.Map{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"type":        typ,
		"count":       len(records),
		"records":     records,
	})
}

// renderCSV flattens records to the fixed column set. Metadata keys used in
// columns are read defensively; anything else stays JSON-only.
func renderCSV(records []models.Visit) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvColumns); err != nil {
		return nil, err
	}

	for _, r := range records {
		row := []string{
			r.ID.Hex(),
			r.Timestamp.UTC().Format(time.RFC3339),
			r.VisitDate,
			r.Site,
			r.Page,
			r.Referrer,
			r.EventType,
			r.IP,
			metaString(r.Metadata, "country"),
			metaString(r.Metadata, "deviceType"),
			metaString(r.Metadata, "timezone"),
			strconv.Itoa(len(r.Messages)),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// metaString reads a metadata value as a string, empty when absent or not a
// string.
func metaString(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
