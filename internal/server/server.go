// Package server exposes the consolidation pipeline over HTTP. One POST
// kicks off one run and blocks until the report is ready; batch work goes
// through the ingest command instead.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skillatlas/ksagraph/internal/logging"
	"github.com/skillatlas/ksagraph/internal/pipeline"
	"github.com/skillatlas/ksagraph/internal/pipeline/model"
)

type Server struct {
	runner *pipeline.Runner
	log    *logging.Logger
}

func NewServer(runner *pipeline.Runner, log *logging.Logger) *Server {
	return &Server{runner: runner, log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.POST("/runs", s.CreateRun)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type runItem struct {
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
	Source     string   `json:"source"`
	TaxonomyID string   `json:"taxonomy_id"`
}

type RunRequest struct {
	Code  string    `json:"code" binding:"required"`
	Title string    `json:"title"`
	Items []runItem `json:"items"`
}

// CreateRun consolidates and persists one job code's draft items. Item
// types are validated up front; anything that goes wrong past that point
// comes back inside the report.
func (s *Server) CreateRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	drafts := make([]model.DraftItem, 0, len(req.Items))
	for i, it := range req.Items {
		t := model.ItemType(it.Type)
		if !t.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item type at index " + strconv.Itoa(i) + ": " + it.Type})
			return
		}
		drafts = append(drafts, model.DraftItem{
			Text:       it.Text,
			Type:       t,
			Confidence: it.Confidence,
			Source:     it.Source,
			TaxonomyID: it.TaxonomyID,
		})
	}

	job := model.JobCode{Code: req.Code, Title: req.Title}
	report := s.runner.Run(c.Request.Context(), job, drafts)
	if report.Error != "" {
		c.JSON(http.StatusUnprocessableEntity, report)
		return
	}
	c.JSON(http.StatusOK, report)
}
