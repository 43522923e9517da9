package domain

import "fmt"

// ThinkingLevel is a generation-effort hint passed through to the LLM provider.
type ThinkingLevel string

const (
	// ThinkingDefault means the caller did not specify a level; the provider
	// default applies and is reported back as "default".
	ThinkingDefault ThinkingLevel = "default"
	ThinkingMinimal ThinkingLevel = "minimal"
	ThinkingLow     ThinkingLevel = "low"
	ThinkingMedium  ThinkingLevel = "medium"
	ThinkingHigh    ThinkingLevel = "high"
)

// ParseThinkingLevel validates a wire value. The empty string maps to
// ThinkingDefault.
func ParseThinkingLevel(s string) (ThinkingLevel, error) {
	switch ThinkingLevel(s) {
	case "":
		return ThinkingDefault, nil
	case ThinkingMinimal, ThinkingLow, ThinkingMedium, ThinkingHigh:
		return ThinkingLevel(s), nil
	default:
		return "", fmt.Errorf("%w: thinking level must be one of minimal, low, medium, high, got %q",
			ErrInvalidArgument, s)
	}
}
