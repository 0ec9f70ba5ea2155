package domain

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Fingerprint identifies a logical request across gateway redeliveries.
// Two deliveries with equal fingerprints are the same request regardless of
// transport-level message identity.
type Fingerprint struct {
	SendTime  int64
	UserID    string
	KioskID   string
	PartialID string
}

// FingerprintOf derives the fingerprint for a parsed command.
func FingerprintOf(c *Command) Fingerprint {
	return Fingerprint{
		SendTime:  c.SendTime.Unix(),
		UserID:    c.UserID,
		KioskID:   c.KioskID,
		PartialID: c.PartialID,
	}
}

// Key returns the storage key for this fingerprint: a hex SHA3-256 over a
// length-prefixed encoding of the fields in the fixed order
// (sendTime, userID, kioskID, partialID). Length prefixes keep the encoding
// unambiguous regardless of field contents.
func (f Fingerprint) Key() string {
	h := sha3.New256()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(f.SendTime))
	h.Write(buf[:])

	for _, field := range []string{f.UserID, f.KioskID, f.PartialID} {
		binary.BigEndian.PutUint64(buf[:], uint64(len(field)))
		h.Write(buf[:])
		h.Write([]byte(field))
	}

	return hex.EncodeToString(h.Sum(nil))
}
