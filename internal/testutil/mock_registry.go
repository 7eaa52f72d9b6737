// Package testutil provides testing utilities for the NSI loader.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockRegistryResponse defines a fixed response for one identifier/page.
type MockRegistryResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RequestRecord captures the query of one request made to the mock.
type RequestRecord struct {
	Identifier string
	UserKey    string
	Page       int
	Size       int
}

type pageKey struct {
	identifier string
	page       int
}

// MockRegistry is a configurable mock of the NSI data endpoint.
type MockRegistry struct {
	server *httptest.Server
	mu     sync.RWMutex

	// pageSizes lists the number of rows served per page, keyed by identifier.
	pageSizes map[string][]int
	// totals serves a dictionary of N records split by the requested size.
	totals    map[string]int
	responses map[pageKey]MockRegistryResponse

	// Tracking
	RequestCount int
	Requests     []RequestRecord
}

// NewMockRegistry creates a new mock registry server.
func NewMockRegistry() *MockRegistry {
	mock := &MockRegistry{
		pageSizes: make(map[string][]int),
		totals:    make(map[string]int),
		responses: make(map[pageKey]MockRegistryResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock endpoint URL.
func (m *MockRegistry) URL() string {
	return m.server.URL + "/port/rest/data"
}

// Close shuts down the mock server.
func (m *MockRegistry) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockRegistry) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
}

// SetPageSizes makes page i of identifier return sizes[i-1] rows.
// Pages past the end return an empty list.
func (m *MockRegistry) SetPageSizes(identifier string, sizes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSizes[identifier] = sizes
}

// SetDictionary serves total records for identifier, paged by the requested size.
func (m *MockRegistry) SetDictionary(identifier string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[identifier] = total
}

// SetResponse overrides the response for one identifier/page.
func (m *MockRegistry) SetResponse(identifier string, page int, resp MockRegistryResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[pageKey{identifier, page}] = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockRegistry) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequests returns a copy of the recorded requests.
func (m *MockRegistry) GetRequests() []RequestRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RequestRecord, len(m.Requests))
	copy(out, m.Requests)
	return out
}

func (m *MockRegistry) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	rec := RequestRecord{
		Identifier: q.Get("identifier"),
		UserKey:    q.Get("userKey"),
		Page:       page,
		Size:       size,
	}

	m.mu.Lock()
	m.RequestCount++
	m.Requests = append(m.Requests, rec)
	m.mu.Unlock()

	m.mu.RLock()
	override, hasOverride := m.responses[pageKey{rec.Identifier, rec.Page}]
	sizes, hasSizes := m.pageSizes[rec.Identifier]
	total, hasTotal := m.totals[rec.Identifier]
	m.mu.RUnlock()

	if hasOverride {
		writeResponse(w, override)
		return
	}

	var start, count int
	switch {
	case hasSizes:
		for i := 0; i < rec.Page-1 && i < len(sizes); i++ {
			start += sizes[i]
		}
		if rec.Page >= 1 && rec.Page <= len(sizes) {
			count = sizes[rec.Page-1]
		}
	case hasTotal:
		start = (rec.Page - 1) * rec.Size
		count = rec.Size
		if start+count > total {
			count = total - start
		}
		if count < 0 {
			count = 0
		}
	default:
		writeResponse(w, NewErrorResult("Справочник не найден"))
		return
	}

	writeResponse(w, NewPageResponse(start, count))
}

func writeResponse(w http.ResponseWriter, resp MockRegistryResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Rows builds count registry rows numbered from start.
func Rows(start, count int) [][]map[string]any {
	rows := make([][]map[string]any, 0, count)
	for i := start; i < start+count; i++ {
		rows = append(rows, []map[string]any{
			{"column": "ID", "value": strconv.Itoa(i + 1)},
			{"column": "NAME", "value": fmt.Sprintf("Запись %d", i+1)},
			{"column": "PARENT_ID", "value": nil},
		})
	}
	return rows
}

// NewPageResponse creates an OK response carrying count rows numbered from start.
func NewPageResponse(start, count int) MockRegistryResponse {
	body, _ := json.Marshal(map[string]any{
		"result": "OK",
		"total":  start + count,
		"list":   Rows(start, count),
	})
	return MockRegistryResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
	}
}

// NewErrorResult creates a 200 response whose registry result is "ERROR".
func NewErrorResult(text string) MockRegistryResponse {
	body, _ := json.Marshal(map[string]any{
		"result":     "ERROR",
		"resultText": text,
		"resultCode": 1,
	})
	return MockRegistryResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockRegistryResponse {
	return MockRegistryResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewMalformedResponse creates a 200 response with a body that is not JSON.
func NewMalformedResponse() MockRegistryResponse {
	return MockRegistryResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
	}
}
