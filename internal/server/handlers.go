package server

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/request"
	"github.com/Veraticus/fraudwatch/internal/simulation"
	"github.com/Veraticus/fraudwatch/internal/storage"
)

type feedResponse struct {
	Entries []model.FeedEntry `json:"entries"`
	Stats   feed.Stats        `json:"stats"`
}

type submittedResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error  string               `json:"error"`
	Fields []request.FieldError `json:"fields,omitempty"`
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"manual_enabled": s.session.ManualEnabled(),
	})
}

func (s *Server) feedHandler(c *gin.Context) {
	c.JSON(http.StatusOK, feedResponse{
		Entries: s.feed.Entries(),
		Stats:   s.feed.Stats(),
	})
}

func (s *Server) alertsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, feedResponse{
		Entries: s.feed.Alerts(),
		Stats:   s.feed.Stats(),
	})
}

func (s *Server) clearHandler(c *gin.Context) {
	s.feed.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) entryHandler(c *gin.Context) {
	id := c.Param("id")
	if entry, ok := s.feed.Get(feed.Handle(id)); ok {
		c.JSON(http.StatusOK, entry)
		return
	}

	if s.history != nil {
		entry, err := s.history.GetEntry(c.Request.Context(), id)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, entry)
			return
		case !errors.Is(err, storage.ErrNotFound):
			s.logger.Error("Failed to load entry from history", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Error: classifier.MsgUnexpected})
			return
		}
	}

	c.JSON(http.StatusNotFound, errorResponse{Error: "entry not found"})
}

func (s *Server) simulateHandler(source model.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			h   feed.Handle
			err error
		)
		if source == model.SourceFraud {
			h, err = s.session.SimulateFraud()
		} else {
			h, err = s.session.SimulateLegit()
		}
		if err != nil {
			s.submitError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, submittedResponse{ID: string(h)})
	}
}

func (s *Server) classifyHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	var payload model.ManualPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: classifier.MsgValidation})
		return
	}

	h, err := s.session.SubmitManual(payload)
	if err != nil {
		s.submitError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, submittedResponse{ID: string(h)})
}

func (s *Server) submitError(c *gin.Context, err error) {
	var verr *request.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: classifier.MsgValidation, Fields: verr.Fields})
	case errors.Is(err, simulation.ErrManualDisabled):
		c.JSON(http.StatusNotImplemented, errorResponse{Error: err.Error()})
	case errors.Is(err, simulation.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("Submission failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: classifier.MsgUnexpected})
	}
}
