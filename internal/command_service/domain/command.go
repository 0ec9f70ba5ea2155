package domain

import (
	"fmt"
	"strings"
	"time"
)

// SupportedVersion is the single protocol version this deployment accepts.
const SupportedVersion = "V2"

// Transaction entry types carried on a material line.
const (
	EntryTypeIssue         = "i"
	EntryTypeReceipt       = "r"
	EntryTypePhysicalCount = "p"
	EntryTypeWastage       = "w"
	EntryTypeTransfer      = "t"
)

// TransactionEntry is a single inventory operation on a material.
type TransactionEntry struct {
	Type     string
	Quantity int64
}

// WireText renders the entry in canonical wire form. The issue type is the
// default and is omitted so that parsed text round-trips byte-for-byte.
func (e TransactionEntry) WireText() string {
	if e.Type == EntryTypeIssue {
		return fmt.Sprintf("%d", e.Quantity)
	}
	return fmt.Sprintf("%s%d", e.Type, e.Quantity)
}

// MaterialLine groups the transaction entries submitted for one material.
type MaterialLine struct {
	MaterialID string
	Entries    []TransactionEntry
}

// WireText renders the line as "<materialID>:<entry>[,<entry>...]".
func (l MaterialLine) WireText() string {
	parts := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		parts = append(parts, e.WireText())
	}
	return l.MaterialID + ":" + strings.Join(parts, ",")
}

// Command is the structured form of one inbound SMS command. It is built
// once by the parser and never mutated afterwards.
type Command struct {
	Version   string
	UserID    string
	Token     string
	KioskID   string
	PartialID string
	SendTime  time.Time
	Lines     []MaterialLine
}

// WireText renders the canonical single-line form of the command. Parsing
// the result recovers an identical Command, including line order.
func (c *Command) WireText() string {
	fields := []string{
		c.Version,
		c.UserID,
		c.Token,
		c.KioskID,
		c.PartialID,
		fmt.Sprintf("%d", c.SendTime.Unix()),
	}
	for _, l := range c.Lines {
		fields = append(fields, l.WireText())
	}
	return strings.Join(fields, " ")
}
