package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFieldsEmptyIntake(t *testing.T) {
	missing := MissingFields(New())
	assert.Equal(t, []Field{
		FieldCurrentSeat,
		FieldProposedSeats,
		FieldAgreementText,
		FieldInstitutionRules,
		FieldGoverningLaw,
	}, missing)
}

func TestMissingFieldsNilIntake(t *testing.T) {
	missing := MissingFields(nil)
	assert.Len(t, missing, 5)
}

func TestMissingFieldsWhitespaceCountsAsMissing(t *testing.T) {
	in := Intake{
		"current_seat":               "   ",
		"proposed_seats":             []string{"  ", ""},
		"arbitration_agreement_text": "\t\n",
		"institution_rules":          " ",
		"governing_law":              "",
	}
	missing := MissingFields(in)
	assert.Len(t, missing, 5)
}

func TestMissingFieldsCompleteIntake(t *testing.T) {
	in := Intake{
		"current_seat":               "London",
		"proposed_seats":             []string{"Singapore"},
		"arbitration_agreement_text": "Disputes shall be settled by arbitration.",
		"institution_rules":          "LCIA",
		"governing_law":              "English law",
	}
	assert.Empty(t, MissingFields(in))
	assert.True(t, IsComplete(in))
}

func TestMissingFieldsStableOrdering(t *testing.T) {
	in := Intake{
		"proposed_seats":    []string{"Paris"},
		"institution_rules": "ICC",
	}
	// current_seat before agreement text before governing law, every time.
	want := []Field{FieldCurrentSeat, FieldAgreementText, FieldGoverningLaw}
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, MissingFields(in))
	}
}

func TestMissingFieldsAcceptsUntypedSeatList(t *testing.T) {
	// JSON round-trips turn []string into []any.
	in := Intake{"proposed_seats": []any{"Geneva"}}
	missing := MissingFields(in)
	assert.NotContains(t, missing, FieldProposedSeats)
}

func TestUnknownKeysPreserved(t *testing.T) {
	in, err := FromJSON([]byte(`{"current_seat":"London","custom_flag":true}`))
	require.NoError(t, err)

	data, err := in.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "custom_flag")
}

func TestFromJSONNull(t *testing.T) {
	in, err := FromJSON([]byte(`null`))
	require.NoError(t, err)
	require.NotNil(t, in)

	in, err = FromJSON(nil)
	require.NoError(t, err)
	require.NotNil(t, in)
}

func TestMergeOverwritesScalars(t *testing.T) {
	in := Intake{"current_seat": "London"}
	changed := in.Merge(map[string]any{"current_seat": "Paris"})
	assert.True(t, changed)
	assert.Equal(t, "Paris", in.Text(FieldCurrentSeat))
}

func TestMergeIgnoresEmptyValues(t *testing.T) {
	in := Intake{"current_seat": "London"}
	changed := in.Merge(map[string]any{
		"current_seat":  "  ",
		"governing_law": "",
	})
	assert.False(t, changed)
	assert.Equal(t, "London", in.Text(FieldCurrentSeat))
}

func TestMergeReplacesSeatsWholesale(t *testing.T) {
	in := Intake{"proposed_seats": []string{"Paris", "Geneva"}}
	changed := in.Merge(map[string]any{"proposed_seats": []any{"Singapore"}})
	assert.True(t, changed)
	assert.Equal(t, []string{"Singapore"}, in.Strings(FieldProposedSeats))
}

func TestMergeSeatsNoChangeWhenEqual(t *testing.T) {
	in := Intake{"proposed_seats": []string{"Singapore"}}
	changed := in.Merge(map[string]any{"proposed_seats": []string{" Singapore "}})
	assert.False(t, changed)
}

func TestMergeAccumulatesAdditionalDetails(t *testing.T) {
	in := New()
	in.Merge(map[string]any{"additional_details": "Parties based in Germany."})
	in.Merge(map[string]any{"additional_details": "Assets held in Switzerland."})

	details := in.Text(FieldAdditionalDetails)
	assert.Contains(t, details, "Parties based in Germany.")
	assert.Contains(t, details, "Assets held in Switzerland.")
}

func TestMergeAdditionalDetailsDeduplicates(t *testing.T) {
	in := New()
	in.Merge(map[string]any{"additional_details": "Assets held in Switzerland."})
	changed := in.Merge(map[string]any{"additional_details": "Assets held in Switzerland."})
	assert.False(t, changed)
}

func TestMergeIdempotent(t *testing.T) {
	in := New()
	delta := map[string]any{
		"current_seat":   "London",
		"proposed_seats": []string{"Singapore"},
	}
	assert.True(t, in.Merge(delta))
	assert.False(t, in.Merge(delta))
}

func TestApplyOverwritesField(t *testing.T) {
	in := Intake{"governing_law": "English law"}
	changed := in.Apply(map[string]any{"governing_law": " French law "})
	assert.True(t, changed)
	assert.Equal(t, "French law", in.Text(FieldGoverningLaw))
}

func TestApplyClearsFieldOnEmptyString(t *testing.T) {
	in := Intake{"governing_law": "English law"}
	changed := in.Apply(map[string]any{"governing_law": "  "})
	assert.True(t, changed)
	_, present := in["governing_law"]
	assert.False(t, present)
	assert.Contains(t, MissingFields(in), FieldGoverningLaw)
}

func TestApplyClearsFieldOnNull(t *testing.T) {
	in := Intake{"current_seat": "London"}
	changed := in.Apply(map[string]any{"current_seat": nil})
	assert.True(t, changed)
	_, present := in["current_seat"]
	assert.False(t, present)
}

func TestApplyClearsProposedSeats(t *testing.T) {
	in := Intake{"proposed_seats": []string{"Paris"}}
	changed := in.Apply(map[string]any{"proposed_seats": []any{}})
	assert.True(t, changed)
	_, present := in["proposed_seats"]
	assert.False(t, present)
}

func TestApplyOverwritesAdditionalDetails(t *testing.T) {
	in := Intake{"additional_details": "Old note."}
	changed := in.Apply(map[string]any{"additional_details": "New note."})
	assert.True(t, changed)
	assert.Equal(t, "New note.", in.Text(FieldAdditionalDetails))
}

func TestApplyNoChangeOnAbsentKeyCleared(t *testing.T) {
	in := Intake{"current_seat": "London"}
	changed := in.Apply(map[string]any{"governing_law": ""})
	assert.False(t, changed)
	assert.Equal(t, "London", in.Text(FieldCurrentSeat))
}

func TestDescribeMissing(t *testing.T) {
	desc := DescribeMissing([]Field{FieldCurrentSeat, FieldGoverningLaw})
	assert.Equal(t, "missing required intake fields: current_seat, governing_law", desc)
	assert.Empty(t, DescribeMissing(nil))
}
