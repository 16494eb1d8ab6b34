package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	walletNumberPrefix = "45"
	walletNumberDigits = 11

	referenceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	referenceRandLen  = 9

	DepositReferencePrefix    = "DEP"
	TransferReferencePrefix   = "TRF"
	TransferInReferencePrefix = "TRF_IN"
)

var walletNumberSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(walletNumberDigits), nil)

// NewWalletNumber returns a random 13 digit wallet number starting with "45".
func NewWalletNumber() (string, error) {
	n, err := rand.Int(rand.Reader, walletNumberSpace)
	if err != nil {
		return "", fmt.Errorf("generate wallet number: %w", err)
	}
	return fmt.Sprintf("%s%0*d", walletNumberPrefix, walletNumberDigits, n), nil
}

// ValidWalletNumber reports whether s has the wallet number shape.
func ValidWalletNumber(s string) bool {
	if len(s) != len(walletNumberPrefix)+walletNumberDigits || !strings.HasPrefix(s, walletNumberPrefix) {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NewReferenceSuffix returns "<unix millis>_<random>" used to build references.
// Two references sharing a suffix belong to the same business event.
func NewReferenceSuffix(now time.Time) string {
	var b strings.Builder
	b.Grow(referenceRandLen)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < referenceRandLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(referenceAlphabet[n.Int64()])
	}
	return fmt.Sprintf("%d_%s", now.UnixMilli(), b.String())
}

// NewReference joins a prefix and a fresh suffix.
func NewReference(prefix string, now time.Time) string {
	return prefix + "_" + NewReferenceSuffix(now)
}
