package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

func testLines() []domain.MaterialLine {
	return []domain.MaterialLine{
		{MaterialID: "M10", Entries: []domain.TransactionEntry{{Type: domain.EntryTypeIssue, Quantity: 5}}},
		{MaterialID: "M20", Entries: []domain.TransactionEntry{{Type: domain.EntryTypeReceipt, Quantity: 3}}},
	}
}

func TestHTTPExecutor_Success(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

		var req executeRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "U123", req.UserID)
		assert.Equal(t, "D7", req.DomainID)
		require.Len(t, req.Lines, 2)
		assert.Equal(t, "M10", req.Lines[0].MaterialID)

		resp := executeResponseBody{Results: map[string]ResponseDetail{
			"M10": {MaterialID: "M10", Accepted: true, Applied: 5},
			"M20": {MaterialID: "M20", Accepted: false, Reason: "NOSTOCK"},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	exec := NewHTTPExecutor(logger, server.URL, "secret-key", server.Client())
	results, err := exec.Execute(context.Background(), "U123", "D7", testLines())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results["M10"].Accepted)
	assert.Equal(t, int64(5), results["M10"].Applied)
	assert.False(t, results["M20"].Accepted)
	assert.Equal(t, "NOSTOCK", results["M20"].Reason)
}

func TestHTTPExecutor_ServerErrorFailsBatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(executeErrorBody{Status: 500, Message: "inventory unavailable"})
	}))
	defer server.Close()

	exec := NewHTTPExecutor(logger, server.URL, "", server.Client())
	_, err := exec.Execute(context.Background(), "U123", "D7", testLines())

	var execErr *domain.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Error(), "inventory unavailable")
}

func TestHTTPExecutor_TransportErrorFailsBatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	exec := NewHTTPExecutor(logger, server.URL, "", nil)
	_, err := exec.Execute(context.Background(), "U123", "D7", testLines())

	var execErr *domain.ExecutionError
	assert.True(t, errors.As(err, &execErr))
}

func TestHTTPExecutor_MissingResultsFailsBatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	exec := NewHTTPExecutor(logger, server.URL, "", server.Client())
	_, err := exec.Execute(context.Background(), "U123", "D7", testLines())

	var execErr *domain.ExecutionError
	assert.True(t, errors.As(err, &execErr))
}
