package llmjson

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

func TestDecode_Strict(t *testing.T) {
	var d decision
	stage, err := Decode(`  {"action":"merge","confidence":0.9}  `, &d)

	require.NoError(t, err)
	assert.Equal(t, StageStrict, stage)
	assert.Equal(t, "merge", d.Action)
	assert.Equal(t, 0.9, d.Confidence)
}

func TestDecode_RecoversEmbeddedObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose around", `Sure! Here is my answer: {"action":"discard","confidence":0.4} Hope that helps.`},
		{"code fence", "```json\n{\"action\":\"discard\",\"confidence\":0.4}\n```"},
		{"braces in strings", `Note {not json} then {"action":"discard","confidence":0.4,"reason":"a } b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d decision
			stage, err := Decode(tt.raw, &d)

			require.NoError(t, err)
			assert.Equal(t, StageRecovered, stage)
			assert.Equal(t, "discard", d.Action)
		})
	}
}

func TestDecode_NoObject(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", "{broken", `["not","an","object"]`} {
		var d decision
		_, err := Decode(raw, &d)
		assert.True(t, errors.Is(err, ErrNoObject), "raw %q", raw)
	}
}

func TestDecode_WrongShape(t *testing.T) {
	var d decision
	stage, err := Decode(`{"action": 12}`, &d)

	require.Error(t, err)
	assert.Equal(t, StageStrict, stage)
	assert.False(t, errors.Is(err, ErrNoObject))
}

func TestObject_LenientFields(t *testing.T) {
	obj, _, err := Object(`{"action":"merge","confidence":"0.8","mergedData":{"name":"Mara"}}`)

	require.NoError(t, err)
	assert.Equal(t, "merge", obj.Get("action").String())
	assert.Equal(t, "Mara", obj.Get("mergedData.name").String())
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "strict", StageStrict.String())
	assert.Equal(t, "recovered", StageRecovered.String())
	assert.Equal(t, "none", Stage(0).String())
}
