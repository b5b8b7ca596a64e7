package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	completionCodeDigits = "0123456789"

	// CompletionCodeLength is the number of digits in a completion code.
	CompletionCodeLength = 6

	// CompletionCodeTTL is how long a generated completion code stays valid.
	CompletionCodeTTL = 10 * time.Minute
)

// GenerateCompletionCode produces a 6-digit numeric one-time code used to
// verify service completion.
func GenerateCompletionCode() (string, error) {
	result := make([]byte, CompletionCodeLength)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(completionCodeDigits))))
		if err != nil {
			return "", fmt.Errorf("failed to generate completion code: %w", err)
		}
		result[i] = completionCodeDigits[n.Int64()]
	}
	return string(result), nil
}
