package tools

import (
	"context"
	"strings"
)

// PhoneValidator performs offline plausibility checks on normalized phone
// numbers. It needs no network access; the rules cover NANP structure and
// common robocall patterns.
type PhoneValidator struct{}

// NewPhoneValidator creates the phone validation tool.
func NewPhoneValidator() *PhoneValidator { return &PhoneValidator{} }

func (p *PhoneValidator) Name() string { return NamePhoneValidator }

var premiumPrefixes = map[string]bool{"900": true, "976": true}

var tollfreeAreaCodes = map[string]bool{
	"800": true, "833": true, "844": true, "855": true,
	"866": true, "877": true, "888": true,
}

// Call classifies the number as "valid", "suspicious" or "invalid" and
// reports the signals behind the classification.
func (p *PhoneValidator) Call(ctx context.Context, value string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digits := strings.TrimPrefix(value, "+")
	payload := map[string]interface{}{
		"number": value,
		"status": "valid",
	}

	nanp := len(digits) == 11 && strings.HasPrefix(digits, "1")
	if !nanp {
		if len(digits) < 7 || len(digits) > 15 {
			payload["status"] = "invalid"
			payload["reason"] = "length outside E.164 bounds"
		} else {
			payload["line_type"] = "international"
		}
		return payload, nil
	}

	area, exchange := digits[1:4], digits[4:7]
	payload["line_type"] = "nanp"
	payload["tollfree"] = tollfreeAreaCodes[area]

	switch {
	case area[0] == '0' || area[0] == '1':
		payload["status"] = "invalid"
		payload["reason"] = "NANP area code cannot start with 0 or 1"
	case premiumPrefixes[area]:
		payload["status"] = "suspicious"
		payload["reason"] = "premium-rate area code"
	case exchange == "555" && !tollfreeAreaCodes[area]:
		payload["status"] = "suspicious"
		payload["reason"] = "555 exchange"
	case repeatedDigits(digits[1:]):
		payload["status"] = "suspicious"
		payload["reason"] = "repeated digit pattern"
	}
	return payload, nil
}

// repeatedDigits reports whether a single digit makes up 8+ of the 10
// subscriber digits, a pattern common in spoofed caller IDs.
func repeatedDigits(digits string) bool {
	var counts [10]int
	for _, r := range digits {
		if r >= '0' && r <= '9' {
			counts[r-'0']++
		}
	}
	for _, c := range counts {
		if c >= 8 {
			return true
		}
	}
	return false
}
