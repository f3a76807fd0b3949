package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"slideflow/internal/generation"
	"slideflow/internal/repository"
)

type stubLinkRunner struct {
	result generation.BatchResult
	err    error
}

func (s stubLinkRunner) RunLink(context.Context, string, int) (generation.BatchResult, error) {
	return s.result, s.err
}

func serveProcess(runner linkRunner, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	h := HandlerSet{controller: runner}
	router := gin.New()
	router.POST("/api/v1/generation/process", h.ProcessBatch)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generation/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProcessBatchReportsLinkResult(t *testing.T) {
	runner := stubLinkRunner{result: generation.BatchResult{Processed: 3, HasMore: true, NextBatchStart: 3}}
	rec := serveProcess(runner, `{"setId":"set-1","batchStart":0}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Processed int  `json:"processed"`
		HasMore   bool `json:"hasMore"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Processed != 3 || !body.HasMore {
		t.Fatalf("body = %+v, want processed 3 hasMore true", body)
	}
}

func TestProcessBatchUnknownSetIs404(t *testing.T) {
	runner := stubLinkRunner{err: repository.ErrSetNotFound}
	rec := serveProcess(runner, `{"setId":"gone"}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unknown set", rec.Code)
	}
}

func TestProcessBatchInfrastructureErrorIs500(t *testing.T) {
	runner := stubLinkRunner{err: errors.New("persistence unreachable")}
	rec := serveProcess(runner, `{"setId":"set-1"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestProcessBatchRejectsNegativeOffset(t *testing.T) {
	rec := serveProcess(stubLinkRunner{}, `{"setId":"set-1","batchStart":-3}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
