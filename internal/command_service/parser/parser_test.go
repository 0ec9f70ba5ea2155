package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

func TestParse_ValidSingleLine(t *testing.T) {
	cmd, err := Parse("V2 U123 TOK9 K55 P1 1700000000 M10:5")
	require.NoError(t, err)

	assert.Equal(t, "V2", cmd.Version)
	assert.Equal(t, "U123", cmd.UserID)
	assert.Equal(t, "TOK9", cmd.Token)
	assert.Equal(t, "K55", cmd.KioskID)
	assert.Equal(t, "P1", cmd.PartialID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), cmd.SendTime)

	require.Len(t, cmd.Lines, 1)
	assert.Equal(t, "M10", cmd.Lines[0].MaterialID)
	require.Len(t, cmd.Lines[0].Entries, 1)
	assert.Equal(t, domain.EntryTypeIssue, cmd.Lines[0].Entries[0].Type)
	assert.Equal(t, int64(5), cmd.Lines[0].Entries[0].Quantity)
}

func TestParse_MultipleLinesPreserveOrder(t *testing.T) {
	cmd, err := Parse("V2 U1 T K1 P9 1700000000 M30:r12 M10:5,w2 M20:p0")
	require.NoError(t, err)

	require.Len(t, cmd.Lines, 3)
	assert.Equal(t, "M30", cmd.Lines[0].MaterialID)
	assert.Equal(t, "M10", cmd.Lines[1].MaterialID)
	assert.Equal(t, "M20", cmd.Lines[2].MaterialID)

	assert.Equal(t, []domain.TransactionEntry{
		{Type: domain.EntryTypeReceipt, Quantity: 12},
	}, cmd.Lines[0].Entries)
	assert.Equal(t, []domain.TransactionEntry{
		{Type: domain.EntryTypeIssue, Quantity: 5},
		{Type: domain.EntryTypeWastage, Quantity: 2},
	}, cmd.Lines[1].Entries)
	assert.Equal(t, []domain.TransactionEntry{
		{Type: domain.EntryTypePhysicalCount, Quantity: 0},
	}, cmd.Lines[2].Entries)
}

func TestParse_RoundTrip(t *testing.T) {
	original := "V2 U123 TOK9 K55 P1 1700000000 M10:5 M20:r3,w1 M30:p0"

	cmd, err := Parse(original)
	require.NoError(t, err)

	rendered := cmd.WireText()
	assert.Equal(t, original, rendered)

	reparsed, err := Parse(rendered)
	require.NoError(t, err)
	assert.Equal(t, cmd, reparsed)
}

func TestParse_UnsupportedVersion(t *testing.T) {
	_, err := Parse("V1 U123 TOK9 K55 P1 1700000000 M10:5")
	var perr *domain.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, domain.ParseErrUnsupportedVersion, perr.Kind)
}

func TestParse_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{"empty message", ""},
		{"whitespace only", "   "},
		{"missing material groups", "V2 U123 TOK9 K55 P1 1700000000"},
		{"unparsable timestamp", "V2 U123 TOK9 K55 P1 notatime M10:5"},
		{"group without colon", "V2 U123 TOK9 K55 P1 1700000000 M10"},
		{"group without entries", "V2 U123 TOK9 K55 P1 1700000000 M10:"},
		{"group without material id", "V2 U123 TOK9 K55 P1 1700000000 :5"},
		{"unknown entry type", "V2 U123 TOK9 K55 P1 1700000000 M10:x5"},
		{"negative quantity", "V2 U123 TOK9 K55 P1 1700000000 M10:-5"},
		{"zero issue quantity", "V2 U123 TOK9 K55 P1 1700000000 M10:0"},
		{"empty entry", "V2 U123 TOK9 K55 P1 1700000000 M10:5,"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.text)
			var perr *domain.ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
			assert.Equal(t, domain.ParseErrMalformed, perr.Kind)
		})
	}
}

func TestParse_ZeroPhysicalCountAllowed(t *testing.T) {
	cmd, err := Parse("V2 U123 TOK9 K55 P1 1700000000 M10:p0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cmd.Lines[0].Entries[0].Quantity)
}
