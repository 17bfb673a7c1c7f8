// Package intake models the structured case facts required to produce a seat-change report.
package intake

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field names a single intake entry.
type Field string

// Intake field constants.
const (
	FieldCurrentSeat       Field = "current_seat"
	FieldProposedSeats     Field = "proposed_seats"
	FieldAgreementText     Field = "arbitration_agreement_text"
	FieldInstitutionRules  Field = "institution_rules"
	FieldGoverningLaw      Field = "governing_law"
	FieldAdditionalDetails Field = "additional_details"
)

// Intake is the mapping of case facts. Unknown keys are preserved so older
// records keep round-tripping as fields are added.
type Intake map[string]any

// New returns an empty, non-nil intake.
func New() Intake {
	return Intake{}
}

// validator checks whether a single required field is present.
// Each required field gets its own implementation so new fields are added as
// new validators without touching existing ones.
type validator interface {
	Field() Field
	Present(in Intake) bool
}

// textValidator requires a non-empty string after trimming.
type textValidator struct {
	field Field
}

func (v textValidator) Field() Field { return v.field }

func (v textValidator) Present(in Intake) bool {
	return strings.TrimSpace(in.Text(v.field)) != ""
}

// seatListValidator requires at least one non-empty proposed seat.
type seatListValidator struct{}

func (seatListValidator) Field() Field { return FieldProposedSeats }

func (seatListValidator) Present(in Intake) bool {
	for _, seat := range in.Strings(FieldProposedSeats) {
		if strings.TrimSpace(seat) != "" {
			return true
		}
	}
	return false
}

// requiredValidators holds the required-field checks in report order.
// The order is fixed so missing-field summaries are stable across calls.
//
//nolint:gochecknoglobals // Fixed required-field registry
var requiredValidators = []validator{
	textValidator{FieldCurrentSeat},
	seatListValidator{},
	textValidator{FieldAgreementText},
	textValidator{FieldInstitutionRules},
	textValidator{FieldGoverningLaw},
}

// RequiredFields returns the required field names in their fixed order.
func RequiredFields() []Field {
	fields := make([]Field, 0, len(requiredValidators))
	for _, v := range requiredValidators {
		fields = append(fields, v.Field())
	}
	return fields
}

// MissingFields returns the required fields that are absent or empty after
// trimming, in the fixed required-field order. Pure: no side effects.
func MissingFields(in Intake) []Field {
	var missing []Field
	for _, v := range requiredValidators {
		if in == nil || !v.Present(in) {
			missing = append(missing, v.Field())
		}
	}
	return missing
}

// IsComplete reports whether all required fields are present.
func IsComplete(in Intake) bool {
	return len(MissingFields(in)) == 0
}

// DescribeMissing renders a human-readable summary of a missing-field set.
func DescribeMissing(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return "missing required intake fields: " + strings.Join(names, ", ")
}

// Text returns the named field as a string. Non-string values return "".
func (in Intake) Text(field Field) string {
	if in == nil {
		return ""
	}
	if s, ok := in[string(field)].(string); ok {
		return s
	}
	return ""
}

// Strings returns the named field as a string slice. Accepts []string,
// []any of strings, or a single string for tolerance toward hand-edited
// intake blobs.
func (in Intake) Strings(field Field) []string {
	if in == nil {
		return nil
	}
	switch v := in[string(field)].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Clone returns a shallow copy of the intake.
func (in Intake) Clone() Intake {
	out := make(Intake, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Merge applies a delta of extracted or edited values and reports whether the
// intake changed. Merge policy:
//   - scalar fields: new non-empty values overwrite old ones;
//   - proposed_seats: replaced wholesale (never appended);
//   - additional_details: accumulated with a separator;
//   - unknown keys: set as given (forward compatibility).
//
// Empty or all-whitespace delta values are ignored.
func (in Intake) Merge(delta map[string]any) bool {
	changed := false
	for key, value := range delta {
		switch Field(key) {
		case FieldProposedSeats:
			seats := cleanSeats(value)
			if len(seats) == 0 {
				continue
			}
			if !equalStrings(in.Strings(FieldProposedSeats), seats) {
				in[key] = seats
				changed = true
			}
		case FieldAdditionalDetails:
			detail, ok := value.(string)
			detail = strings.TrimSpace(detail)
			if !ok || detail == "" {
				continue
			}
			existing := strings.TrimSpace(in.Text(FieldAdditionalDetails))
			if existing == "" {
				in[key] = detail
				changed = true
			} else if !strings.Contains(existing, detail) {
				in[key] = existing + "\n\n" + detail
				changed = true
			}
		default:
			if s, ok := value.(string); ok {
				trimmed := strings.TrimSpace(s)
				if trimmed == "" {
					continue
				}
				if in.Text(Field(key)) != trimmed {
					in[key] = trimmed
					changed = true
				}
				continue
			}
			if value == nil {
				continue
			}
			in[key] = value
			changed = true
		}
	}
	return changed
}

// Apply overwrites fields from an explicit user edit and reports whether the
// intake changed. Unlike Merge, edits win unconditionally: empty or null
// values remove the field, proposed_seats is replaced wholesale or removed
// when emptied, and additional_details is overwritten rather than
// accumulated.
func (in Intake) Apply(edits map[string]any) bool {
	changed := false
	for key, value := range edits {
		if Field(key) == FieldProposedSeats {
			seats := cleanSeats(value)
			if len(seats) == 0 {
				changed = in.remove(key) || changed
				continue
			}
			if !equalStrings(in.Strings(FieldProposedSeats), seats) {
				in[key] = seats
				changed = true
			}
			continue
		}

		if s, ok := value.(string); ok {
			trimmed := strings.TrimSpace(s)
			if trimmed == "" {
				value = nil
			} else {
				value = trimmed
			}
		}
		if value == nil {
			changed = in.remove(key) || changed
			continue
		}
		if s, ok := value.(string); ok && in.Text(Field(key)) == s {
			continue
		}
		in[key] = value
		changed = true
	}
	return changed
}

func (in Intake) remove(key string) bool {
	if _, present := in[key]; !present {
		return false
	}
	delete(in, key)
	return true
}

func cleanSeats(value any) []string {
	var raw []string
	switch v := value.(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = []string{v}
	}

	var seats []string
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			seats = append(seats, trimmed)
		}
	}
	return seats
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FromJSON parses an intake from its JSON representation. A null or empty
// payload yields an empty intake, never nil.
func FromJSON(data []byte) (Intake, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var in Intake
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse intake JSON: %w", err)
	}
	if in == nil {
		in = New()
	}
	return in, nil
}

// ToJSON serializes the intake for storage.
func (in Intake) ToJSON() ([]byte, error) {
	if in == nil {
		in = New()
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize intake: %w", err)
	}
	return data, nil
}
