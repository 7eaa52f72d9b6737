package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sternrassler/nsi-loader/pkg/ingest"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Detail string `json:"detail"`
}

type fetchResponse struct {
	Identifier string `json:"identifier"`
	Records    int    `json:"records"`
}

type saveResponse struct {
	Status     string `json:"status"`
	Identifier string `json:"identifier"`
	Records    int    `json:"records"`
}

type summaryResponse struct {
	Summary []ingest.Outcome `json:"summary"`
}

// downloadEntry holds either a record count or an error message.
type downloadEntry struct {
	Records *int   `json:"records,omitempty"`
	Error   string `json:"error,omitempty"`
}

// downloadSummary encodes as a JSON object keyed by identifier, in the
// configured order.
type downloadSummary []ingest.DownloadOutcome

// MarshalJSON implements json.Marshaler.
func (d downloadSummary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, o := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(o.Identifier)
		if err != nil {
			return nil, err
		}

		entry := downloadEntry{}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		} else {
			records := o.Records
			entry.Records = &records
		}
		value, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	for _, nc := range s.checks {
		if err := nc.check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("dependency", nc.name).Msg("Readiness check failed")
			c.JSON(http.StatusServiceUnavailable, errorResponse{Detail: nc.name + ": " + err.Error()})
			return
		}
	}
	c.String(http.StatusOK, "OK")
}

func (s *Server) fetchOne(c *gin.Context) {
	identifier, ok := requireIdentifier(c)
	if !ok {
		return
	}

	result, err := s.service.FetchOne(detach(c), identifier)
	if err != nil {
		s.fail(c, identifier, err)
		return
	}

	c.JSON(http.StatusOK, fetchResponse{Identifier: identifier, Records: result.Len()})
}

func (s *Server) saveOne(c *gin.Context) {
	identifier, ok := requireIdentifier(c)
	if !ok {
		return
	}

	count, err := s.service.SaveOne(detach(c), identifier)
	if err != nil {
		s.fail(c, identifier, err)
		return
	}

	c.JSON(http.StatusOK, saveResponse{Status: "saved", Identifier: identifier, Records: count})
}

// saveAll always answers 200; failures are in the summary.
func (s *Server) saveAll(c *gin.Context) {
	report := s.service.SaveConfigured(detach(c))
	c.JSON(http.StatusOK, summaryResponse{Summary: report.Summary})
}

func (s *Server) downloadAll(c *gin.Context) {
	outcomes := s.service.DownloadConfigured(detach(c))
	c.JSON(http.StatusOK, downloadSummary(outcomes))
}

func (s *Server) lastReport(c *gin.Context) {
	if s.reports == nil {
		c.JSON(http.StatusNotFound, errorResponse{Detail: "sync history is disabled"})
		return
	}

	report, err := s.reports.Last(c.Request.Context())
	if err != nil {
		if s.isMissing != nil && s.isMissing(err) {
			c.JSON(http.StatusNotFound, errorResponse{Detail: "no sync report recorded yet"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to read last sync report")
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) fail(c *gin.Context, identifier string, err error) {
	s.logger.Error().
		Err(err).
		Str("identifier", identifier).
		Str("path", c.FullPath()).
		Msg("Request failed")
	c.JSON(http.StatusInternalServerError, errorResponse{Detail: err.Error()})
}

// detach keeps request values but drops the request's cancellation.
func detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func requireIdentifier(c *gin.Context) (string, bool) {
	identifier := c.Query("identifier")
	if identifier == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: "query parameter identifier is required"})
		return "", false
	}
	return identifier, true
}
