// Package api wires the HTTP handlers, the websocket hub and the swagger UI
// onto the router.
package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	"go-insights-pipeline/internal/api/handler"
	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/pkg/router"

	_ "go-insights-pipeline/docs"
)

func RegisterRoutes(r *router.Router, h *handler.Handler, hub *Hub) {
	r.POST("/api/v1/lists", h.List)
	r.POST("/api/v1/field-lists", h.FieldList)
	r.POST("/api/v1/widgets/resolve", h.ResolveWidget)
	r.POST("/api/v1/assignee-time", h.AssigneeTime)
	r.POST("/api/v1/filter-values", h.FilterValues)

	r.POST("/api/v1/exports", h.SubmitExport)
	r.GET("/api/v1/exports", h.ListExports)
	// More specific routes first
	r.GET("/api/v1/exports/*/files/*", h.DownloadExportFile)
	r.GET("/api/v1/exports/*/files", h.GetExportFiles)
	r.GET("/api/v1/exports/*/errors", h.GetExportErrors)
	r.GET("/api/v1/exports/*/logs", h.GetExportLogs)
	// Generic export route last
	r.GET("/api/v1/exports/*", h.GetExport)

	r.GET("/api/v1/cache", h.ListCache)
	r.GET("/api/v1/cache/entry", h.GetCacheEntry)
	r.POST("/api/v1/cache/clear", h.ClearCache)

	r.GET(export.SampleUsersPath, h.SampleUsers)

	r.GET("/ws", hub.ServeHTTP)
	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
