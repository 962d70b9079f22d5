package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexBool_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want FlexBool
	}{
		{`true`, true},
		{`false`, false},
		{`null`, false},
		{`"true"`, true},
		{`"on"`, true},
		{`"Yes"`, true},
		{`"1"`, true},
		{`""`, false},
		{`"false"`, false},
		{`"off"`, false},
		{`1`, true},
		{`0`, false},
		{`2.5`, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got struct {
				Commitment FlexBool `json:"commitment"`
			}
			err := json.Unmarshal([]byte(`{"commitment":`+tt.in+`}`), &got)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Commitment)
		})
	}
}

func TestFlexBool_RejectsObjects(t *testing.T) {
	var got struct {
		Commitment FlexBool `json:"commitment"`
	}
	err := json.Unmarshal([]byte(`{"commitment":{"a":1}}`), &got)
	assert.Error(t, err)
}

func TestApplication_Fallbacks(t *testing.T) {
	app := Application{Experience: "   ", Commitment: false}
	assert.Equal(t, "None", app.ExperienceOr("None"))
	assert.Equal(t, "No", app.CommitmentLabel())

	app = Application{Experience: "2 years of Go", Commitment: true}
	assert.Equal(t, "2 years of Go", app.ExperienceOr("None"))
	assert.Equal(t, "Yes", app.CommitmentLabel())
}
