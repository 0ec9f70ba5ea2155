package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

// HTTPExecutor calls the inventory service's transaction endpoint.
type HTTPExecutor struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

func NewHTTPExecutor(logger *slog.Logger, apiURL, apiKey string, httpClient *http.Client) *HTTPExecutor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExecutor{
		logger:     logger.With("component", "http_executor"),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

type executeRequestBody struct {
	UserID   string             `json:"user_id"`
	DomainID string             `json:"domain_id"`
	Lines    []executeLineEntry `json:"lines"`
}

type executeLineEntry struct {
	MaterialID string              `json:"material_id"`
	Entries    []executeEntryEntry `json:"entries"`
}

type executeEntryEntry struct {
	Type     string `json:"type"`
	Quantity int64  `json:"quantity"`
}

type executeResponseBody struct {
	Results map[string]ResponseDetail `json:"results"`
}

type executeErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Execute posts the batch and decodes the per-material result map. Any
// transport failure or non-2xx response fails the whole batch as a
// *domain.ExecutionError.
func (e *HTTPExecutor) Execute(ctx context.Context, userID, domainID string, lines []domain.MaterialLine) (map[string]ResponseDetail, error) {
	reqBody := executeRequestBody{UserID: userID, DomainID: domainID}
	for _, l := range lines {
		line := executeLineEntry{MaterialID: l.MaterialID}
		for _, en := range l.Entries {
			line.Entries = append(line.Entries, executeEntryEntry{Type: en.Type, Quantity: en.Quantity})
		}
		reqBody.Lines = append(reqBody.Lines, line)
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("failed to marshal execute request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("failed to create execute request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	e.logger.DebugContext(ctx, "Calling transaction executor", "url", e.apiURL, "user_id", userID, "line_count", len(lines))

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		e.logger.ErrorContext(ctx, "Transaction executor request failed", "error", err, "user_id", userID)
		return nil, &domain.ExecutionError{Cause: err}
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("failed to read executor response (status %d): %w", httpResp.StatusCode, err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errBody executeErrorBody
		msg := fmt.Sprintf("executor returned status %d", httpResp.StatusCode)
		if jsonErr := json.Unmarshal(respBytes, &errBody); jsonErr == nil && errBody.Message != "" {
			msg = fmt.Sprintf("executor returned status %d: %s", httpResp.StatusCode, errBody.Message)
		}
		e.logger.WarnContext(ctx, "Transaction executor rejected batch", "status_code", httpResp.StatusCode, "user_id", userID)
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("%s", msg)}
	}

	var respBody executeResponseBody
	if err := json.Unmarshal(respBytes, &respBody); err != nil {
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("failed to decode executor response: %w", err)}
	}
	if respBody.Results == nil {
		return nil, &domain.ExecutionError{Cause: fmt.Errorf("executor response missing results")}
	}

	e.logger.InfoContext(ctx, "Transaction batch executed", "user_id", userID, "result_count", len(respBody.Results))
	return respBody.Results, nil
}
