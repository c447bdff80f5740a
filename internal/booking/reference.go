package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/tanefack/community-booking/internal/model"
)

// Reference codes are short human-readable identifiers handed to the
// customer for offline verification at the venue entrance, distinct
// from the internal numeric id.  Format: EVT-1234 or HALL-1234.

// referencePrefix maps a resource type to its code prefix.
func referencePrefix(rt model.ResourceType) string {
	if rt == model.ResourceEvent {
		return "EVT"
	}
	return "HALL"
}

// GenerateReferenceCode produces a candidate reference code for the
// given resource type.  The 4-digit number is drawn from crypto/rand;
// uniqueness is the caller's responsibility (the engine re-draws on
// collision against all existing bookings, not scoped by type).
func GenerateReferenceCode(rt model.ResourceType) (string, error) {
	// 1000..9999 keeps the number at exactly four digits.
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", referencePrefix(rt), n.Int64()+1000), nil
}
