// Package filter evaluates tracker filter predicates against resolved
// variable sets. Evaluation is a total function: malformed operands, missing
// variables, and unknown operators all degrade to false instead of failing.
package filter

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/trlogic/tracker-web/internal/domain"
)

// Supported filter operators.
const (
	OpIsEquals                = "isEquals"
	OpIsEqualsIgnoreCase      = "isEqualsIgnoreCase"
	OpNotEquals               = "notEquals"
	OpNotEqualsIgnoreCase     = "notEqualsIgnoreCase"
	OpIsContains              = "isContains"
	OpIsContainsIgnoreCase    = "isContainsIgnoreCase"
	OpNotContains             = "notContains"
	OpNotContainsIgnoreCase   = "notContainsIgnoreCase"
	OpIsStartsWith            = "isStartsWith"
	OpIsStartsWithIgnoreCase  = "isStartsWithIgnoreCase"
	OpNotStartsWith           = "notStartsWith"
	OpNotStartsWithIgnoreCase = "notStartsWithIgnoreCase"
	OpIsEndsWith              = "isEndsWith"
	OpIsEndsWithIgnoreCase    = "isEndsWithIgnoreCase"
	OpNotEndsWith             = "notEndsWith"
	OpNotEndsWithIgnoreCase   = "notEndsWithIgnoreCase"
	OpIsRegexMatch            = "isRegexMatch"
	OpIsRegexMatchIgnoreCase  = "isRegexMatchIgnoreCase"
	OpNotRegexMatch           = "notRegexMatch"
	OpNotRegexMatchIgnoreCase = "notRegexMatchIgnoreCase"
	OpLessThan                = "lessThan"
	OpLessThanOrEquals        = "lessThanOrEquals"
	OpGreaterThan             = "greaterThan"
	OpGreaterThanOrEquals     = "greaterThanOrEquals"
)

// Evaluate applies a single filter against the resolved variable mapping.
// A missing left-hand variable reads as the empty string.
func Evaluate(f domain.Filter, variables map[string]any) bool {
	left := domain.String(variables[f.Left])
	right := f.Right

	switch f.Operator {
	case OpIsEquals:
		return left == right
	case OpIsEqualsIgnoreCase:
		return strings.EqualFold(left, right)
	case OpNotEquals:
		return left != right
	case OpNotEqualsIgnoreCase:
		return !strings.EqualFold(left, right)
	case OpIsContains:
		return strings.Contains(left, right)
	case OpIsContainsIgnoreCase:
		return strings.Contains(strings.ToLower(left), strings.ToLower(right))
	case OpNotContains:
		return !strings.Contains(left, right)
	case OpNotContainsIgnoreCase:
		return !strings.Contains(strings.ToLower(left), strings.ToLower(right))
	case OpIsStartsWith:
		return strings.HasPrefix(left, right)
	case OpIsStartsWithIgnoreCase:
		return strings.HasPrefix(strings.ToLower(left), strings.ToLower(right))
	case OpNotStartsWith:
		return !strings.HasPrefix(left, right)
	case OpNotStartsWithIgnoreCase:
		return !strings.HasPrefix(strings.ToLower(left), strings.ToLower(right))
	case OpIsEndsWith:
		return strings.HasSuffix(left, right)
	case OpIsEndsWithIgnoreCase:
		return strings.HasSuffix(strings.ToLower(left), strings.ToLower(right))
	case OpNotEndsWith:
		return !strings.HasSuffix(left, right)
	case OpNotEndsWithIgnoreCase:
		return !strings.HasSuffix(strings.ToLower(left), strings.ToLower(right))
	case OpLessThan:
		return parseFloat(left) < parseFloat(right)
	case OpLessThanOrEquals:
		return parseFloat(left) <= parseFloat(right)
	case OpGreaterThan:
		return parseFloat(left) > parseFloat(right)
	case OpGreaterThanOrEquals:
		return parseFloat(left) >= parseFloat(right)
	case OpIsRegexMatch:
		return regexMatch(right, left, false)
	case OpIsRegexMatchIgnoreCase:
		return regexMatch(right, left, true)
	case OpNotRegexMatch:
		// A pattern that fails to compile is "no match", so the negated
		// operator still yields false rather than true.
		if !regexCompiles(right, false) {
			return false
		}
		return !regexMatch(right, left, false)
	case OpNotRegexMatchIgnoreCase:
		if !regexCompiles(right, true) {
			return false
		}
		return !regexMatch(right, left, true)
	default:
		return false
	}
}

// EvaluateAll reports whether every filter in the slice accepts the variables.
func EvaluateAll(filters []domain.Filter, variables map[string]any) bool {
	for _, f := range filters {
		if !Evaluate(f, variables) {
			return false
		}
	}
	return true
}

// parseFloat parses the longest numeric prefix of the operand, so values
// like "50px" compare as 50. Operands without any numeric prefix become NaN,
// making every comparison against them false per IEEE semantics.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	for end := len(s); end > 0; end-- {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v
		}
	}
	return math.NaN()
}

func regexCompiles(pattern string, ignoreCase bool) bool {
	_, err := regexp.Compile(applyCaseFlag(pattern, ignoreCase))
	return err == nil
}

func regexMatch(pattern, value string, ignoreCase bool) bool {
	re, err := regexp.Compile(applyCaseFlag(pattern, ignoreCase))
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func applyCaseFlag(pattern string, ignoreCase bool) string {
	if ignoreCase {
		return "(?i)" + pattern
	}
	return pattern
}
