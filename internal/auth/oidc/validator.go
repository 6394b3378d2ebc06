package oidc

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// stringClaims flattens token claims. Non-string values are JSON encoded.
func stringClaims(claims map[string]any) map[string]string {
	result := make(map[string]string, len(claims))
	for k, v := range claims {
		if s, ok := v.(string); ok {
			result[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			result[k] = fmt.Sprintf("%v", v)
			continue
		}
		result[k] = string(b)
	}
	return result
}

// ValidateRequiredClaims validates that the token claims contain all required claims.
func ValidateRequiredClaims(claims map[string]string, required map[string]string) error {
	for key, expectedValue := range required {
		actualValue, exists := claims[key]
		if !exists {
			return fmt.Errorf("required claim %q not found in token", key)
		}

		// For JSON array values, check if the expected value is contained.
		if isJSONArray(actualValue) {
			if !jsonArrayContains(actualValue, expectedValue) {
				return fmt.Errorf("required claim %q value %q not found in %s", key, expectedValue, actualValue)
			}
			continue
		}

		if actualValue != expectedValue {
			return fmt.Errorf("required claim %q: expected %q, got %q", key, expectedValue, actualValue)
		}
	}
	return nil
}

func isJSONArray(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

func jsonArrayContains(arrayStr, value string) bool {
	var arr []any
	if err := json.Unmarshal([]byte(arrayStr), &arr); err != nil {
		return false
	}
	return slices.ContainsFunc(arr, func(item any) bool {
		return fmt.Sprintf("%v", item) == value
	})
}
