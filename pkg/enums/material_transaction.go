package enums

import "fmt"

// MaterialTransactionType describes the direction of a stock movement.
type MaterialTransactionType string

const (
	MaterialTransactionIssue  MaterialTransactionType = "issue"
	MaterialTransactionReturn MaterialTransactionType = "return"
)

var validMaterialTransactionTypes = []MaterialTransactionType{
	MaterialTransactionIssue,
	MaterialTransactionReturn,
}

func (t MaterialTransactionType) String() string {
	return string(t)
}

func (t MaterialTransactionType) IsValid() bool {
	for _, candidate := range validMaterialTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseMaterialTransactionType(value string) (MaterialTransactionType, error) {
	for _, candidate := range validMaterialTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid material transaction type %q", value)
}
