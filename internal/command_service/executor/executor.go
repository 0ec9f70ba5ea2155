// Package executor defines the transaction executor boundary: the external
// inventory service that applies parsed material transactions. The pipeline
// treats it as synchronous and never retries it; retries only arrive as new
// inbound deliveries gated by the idempotency coordinator.
package executor

import (
	"context"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

// ResponseDetail is the per-material outcome of an execution. A rejected
// line carries the rejection reason; an accepted line the applied quantity.
type ResponseDetail struct {
	MaterialID string `json:"material_id"`
	Accepted   bool   `json:"accepted"`
	Applied    int64  `json:"applied"`
	Reason     string `json:"reason,omitempty"`
}

// Executor applies a batch of material transactions for a user in a domain.
// It either returns a response per material (possibly with per-material
// rejections inside) or fails the whole batch with an error.
type Executor interface {
	Execute(ctx context.Context, userID, domainID string, lines []domain.MaterialLine) (map[string]ResponseDetail, error)
}
