package app

import (
	"fmt"
	"strings"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
	"github.com/logistimo/sms-command-gateway/internal/command_service/executor"
)

// Reply text prefixes. These, with the reply codes in the domain package,
// are part of the user-visible contract.
const (
	replyPrefixOK        = "OK"
	replyPrefixError     = "ERR"
	replyPrefixDuplicate = "DUP"
)

// BuildReply synthesizes the single outbound reply text.
//
//   - errorCode set: fixed-format error reply for that code.
//   - outcome set: success/partial-success reply enumerating each submitted
//     material line in submission order.
//   - neither set: duplicate acknowledgment for a completed replay; the
//     original per-material detail is not recomputed.
func BuildReply(address string, cmd *domain.Command, outcome map[string]executor.ResponseDetail, errorCode string) domain.ReplyMessage {
	switch {
	case errorCode != "":
		return domain.ReplyMessage{Address: address, Text: replyPrefixError + " " + errorCode}
	case outcome != nil:
		return domain.ReplyMessage{Address: address, Text: successText(cmd, outcome)}
	default:
		return domain.ReplyMessage{Address: address, Text: replyPrefixDuplicate + " " + cmd.PartialID}
	}
}

func successText(cmd *domain.Command, outcome map[string]executor.ResponseDetail) string {
	parts := make([]string, 0, len(cmd.Lines)+1)
	parts = append(parts, replyPrefixOK)
	for _, line := range cmd.Lines {
		detail, ok := outcome[line.MaterialID]
		switch {
		case !ok:
			parts = append(parts, fmt.Sprintf("%s:ERR(MISSING)", line.MaterialID))
		case detail.Accepted:
			parts = append(parts, fmt.Sprintf("%s:%d", line.MaterialID, detail.Applied))
		default:
			parts = append(parts, fmt.Sprintf("%s:ERR(%s)", line.MaterialID, detail.Reason))
		}
	}
	return strings.Join(parts, " ")
}
