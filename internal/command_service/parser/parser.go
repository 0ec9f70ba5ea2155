// Package parser decodes the single-line SMS command wire format into the
// structured Command consumed by the rest of the pipeline. Parsing is
// side-effect-free.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

// Wire format:
//
//	V2 <userID> <token> <kioskID> <partialID> <unixSendTime> <group> [<group>...]
//
// group  = <materialID>:<entry>[,<entry>...]
// entry  = [<typeLetter>]<quantity>, typeLetter one of i r p w t,
//          bare quantity means issue.
const minFieldCount = 7

var entryTypes = map[string]bool{
	domain.EntryTypeIssue:         true,
	domain.EntryTypeReceipt:       true,
	domain.EntryTypePhysicalCount: true,
	domain.EntryTypeWastage:       true,
	domain.EntryTypeTransfer:      true,
}

func malformed(format string, args ...any) *domain.ParseError {
	return &domain.ParseError{Kind: domain.ParseErrMalformed, Detail: fmt.Sprintf(format, args...)}
}

// Parse decodes strippedText (dev routing suffix already removed) into a
// Command. It returns a *domain.ParseError for unsupported versions or
// malformed text.
func Parse(strippedText string) (*domain.Command, error) {
	fields := strings.Fields(strippedText)
	if len(fields) == 0 {
		return nil, malformed("empty message")
	}

	version := fields[0]
	if version != domain.SupportedVersion {
		// No partial parse is attempted for unsupported versions.
		return nil, &domain.ParseError{
			Kind:   domain.ParseErrUnsupportedVersion,
			Detail: fmt.Sprintf("version %q is not supported", version),
		}
	}

	if len(fields) < minFieldCount {
		return nil, malformed("expected at least %d fields, got %d", minFieldCount, len(fields))
	}

	for i, name := range []string{"user id", "token", "kiosk id", "partial id"} {
		if fields[i+1] == "" {
			return nil, malformed("missing %s", name)
		}
	}

	sendUnix, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return nil, malformed("unparsable send timestamp %q", fields[5])
	}

	lines := make([]domain.MaterialLine, 0, len(fields)-6)
	for _, group := range fields[6:] {
		line, err := parseMaterialGroup(group)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return &domain.Command{
		Version:   version,
		UserID:    fields[1],
		Token:     fields[2],
		KioskID:   fields[3],
		PartialID: fields[4],
		SendTime:  time.Unix(sendUnix, 0).UTC(),
		Lines:     lines,
	}, nil
}

func parseMaterialGroup(group string) (domain.MaterialLine, error) {
	materialID, entriesPart, found := strings.Cut(group, ":")
	if !found || materialID == "" || entriesPart == "" {
		return domain.MaterialLine{}, malformed("invalid material group %q", group)
	}

	rawEntries := strings.Split(entriesPart, ",")
	entries := make([]domain.TransactionEntry, 0, len(rawEntries))
	for _, raw := range rawEntries {
		entry, err := parseEntry(group, raw)
		if err != nil {
			return domain.MaterialLine{}, err
		}
		entries = append(entries, entry)
	}

	return domain.MaterialLine{MaterialID: materialID, Entries: entries}, nil
}

func parseEntry(group, raw string) (domain.TransactionEntry, error) {
	if raw == "" {
		return domain.TransactionEntry{}, malformed("empty entry in group %q", group)
	}

	entryType := domain.EntryTypeIssue
	qtyPart := raw
	if raw[0] < '0' || raw[0] > '9' {
		entryType = string(raw[0])
		qtyPart = raw[1:]
		if !entryTypes[entryType] {
			return domain.TransactionEntry{}, malformed("unknown entry type %q in group %q", entryType, group)
		}
	}

	qty, err := strconv.ParseInt(qtyPart, 10, 64)
	if err != nil || qty < 0 {
		return domain.TransactionEntry{}, malformed("invalid quantity %q in group %q", qtyPart, group)
	}
	// A zero quantity is only meaningful for a physical count.
	if qty == 0 && entryType != domain.EntryTypePhysicalCount {
		return domain.TransactionEntry{}, malformed("zero quantity for entry type %q in group %q", entryType, group)
	}

	return domain.TransactionEntry{Type: entryType, Quantity: qty}, nil
}
