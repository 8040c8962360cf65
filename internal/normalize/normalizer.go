// Package normalize coerces raw spreadsheet cell values into canonical field values.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/rpattn/custimport/internal/domain"
)

// Issue codes raised by the normalizer.
const (
	CodePhoneTooShort    = "phone_too_short"
	CodeInvalidEmail     = "invalid_email"
	CodeInvalidPostal    = "invalid_postal_code"
	CodeInvalidOrgNumber = "invalid_org_number"
	CodeInvalidDate      = "invalid_date"
)

const (
	minPhoneDigits = 8
	// Excel serials for 1980-01-01 through 2099-12-31
	excelSerialMin  = 29221
	excelSerialMax  = 73050
	orgNumberDigits = 9
)

var (
	excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

	dateLayouts = []string{
		domain.DateLayout,
		"2.1.2006",
		"2/1/2006",
		"2.1.06",
		"2-1-2006",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
)

// Result is the outcome of normalizing one value.
type Result struct {
	Value   string
	Changes []domain.Change
	Issues  []domain.ValidationIssue
}

// Normalizer converts raw values per target field. It holds no per-call state.
type Normalizer struct {
	validate *validator.Validate
}

// New constructs a Normalizer.
func New() *Normalizer {
	return &Normalizer{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Value normalizes raw for field. Empty input yields an empty result without issues.
func (n *Normalizer) Value(field domain.Field, raw string) Result {
	text := collapseWhitespace(raw)
	if text == "" {
		return Result{}
	}

	var res Result
	switch field {
	case domain.FieldPhone:
		res = n.phone(text)
	case domain.FieldEmail:
		res = n.email(text)
	case domain.FieldPostalCode:
		res = n.postalCode(text)
	case domain.FieldOrgNumber:
		res = n.orgNumber(text)
	case domain.FieldLastServiceDate, domain.FieldNextServiceDate:
		res = n.date(field, text)
	default:
		res = Result{Value: text}
	}

	if text != raw {
		reason := "whitespace collapsed"
		if strings.TrimSpace(raw) == text {
			reason = "whitespace trimmed"
		}
		res.Changes = append([]domain.Change{{Field: field, Before: raw, After: text, Reason: reason}}, res.Changes...)
	}
	for i := range res.Changes {
		res.Changes[i].Field = field
	}
	for i := range res.Issues {
		res.Issues[i].Field = field
		res.Issues[i].Value = text
	}
	return res
}

func (n *Normalizer) phone(text string) Result {
	var b strings.Builder
	for i, r := range text {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	value := b.String()
	if strings.HasPrefix(value, "00") {
		value = "+" + value[2:]
	}

	res := Result{Value: value}
	if value != text {
		res.Changes = append(res.Changes, domain.Change{Before: text, After: value, Reason: "phone formatting removed"})
	}
	if digits := strings.TrimPrefix(value, "+"); len(digits) < minPhoneDigits {
		res.Issues = append(res.Issues, warning(CodePhoneTooShort,
			fmt.Sprintf("%q has fewer than %d digits", text, minPhoneDigits),
			"check that the full phone number was exported"))
	}
	return res
}

func (n *Normalizer) email(text string) Result {
	value := strings.ToLower(strings.ReplaceAll(text, " ", ""))
	res := Result{Value: value}
	if value != text {
		res.Changes = append(res.Changes, domain.Change{Before: text, After: value, Reason: "email lowercased"})
	}
	if err := n.validate.Var(value, "email"); err != nil {
		res.Issues = append(res.Issues, warning(CodeInvalidEmail,
			fmt.Sprintf("%q is not a valid email address", text), ""))
	}
	return res
}

func (n *Normalizer) postalCode(text string) Result {
	value := digitsOnly(text)
	reason := "non-digit characters removed"
	if len(value) == 3 {
		value = "0" + value
		reason = "leading zero restored"
	}

	res := Result{Value: value}
	if value != text {
		res.Changes = append(res.Changes, domain.Change{Before: text, After: value, Reason: reason})
	}
	if len(value) != 4 {
		res.Value = text
		res.Changes = nil
		res.Issues = append(res.Issues, warning(CodeInvalidPostal,
			fmt.Sprintf("%q is not a 4 digit postal code", text), ""))
	}
	return res
}

func (n *Normalizer) orgNumber(text string) Result {
	value := digitsOnly(text)
	res := Result{Value: value}
	if value != text {
		res.Changes = append(res.Changes, domain.Change{Before: text, After: value, Reason: "non-digit characters removed"})
	}
	if len(value) != orgNumberDigits {
		res.Value = text
		res.Changes = nil
		res.Issues = append(res.Issues, warning(CodeInvalidOrgNumber,
			fmt.Sprintf("%q is not a %d digit organisation number", text, orgNumberDigits), ""))
	}
	return res
}

func (n *Normalizer) date(field domain.Field, text string) Result {
	parsed, reason, ok := parseDate(text)
	if !ok {
		return Result{
			Value: text,
			Issues: []domain.ValidationIssue{warning(CodeInvalidDate,
				fmt.Sprintf("%q in %s is not a recognised date", text, field),
				"use YYYY-MM-DD or DD.MM.YYYY")},
		}
	}
	value := parsed.Format(domain.DateLayout)
	res := Result{Value: value}
	if value != text {
		res.Changes = append(res.Changes, domain.Change{Before: text, After: value, Reason: reason})
	}
	return res
}

// ParseDate exposes the date coercion for column type inference.
func ParseDate(text string) (time.Time, bool) {
	t, _, ok := parseDate(strings.TrimSpace(text))
	return t, ok
}

func parseDate(text string) (time.Time, string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), "date reformatted", true
		}
	}
	if serial, err := strconv.ParseFloat(text, 64); err == nil {
		days := math.Floor(serial)
		if days >= excelSerialMin && days <= excelSerialMax {
			return excelEpoch.AddDate(0, 0, int(days)), "excel serial date converted", true
		}
	}
	return time.Time{}, "", false
}

func warning(code, message, fix string) domain.ValidationIssue {
	return domain.ValidationIssue{
		Severity:     domain.SeverityWarning,
		Code:         code,
		Message:      message,
		SuggestedFix: fix,
	}
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
