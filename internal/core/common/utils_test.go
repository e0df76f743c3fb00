package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Decision string   `json:"decision"`
	Gaps     []string `json:"gaps"`
}

func TestParseJSONPlainObject(t *testing.T) {
	got, err := ParseJSON[payload](`{"decision": "stop", "gaps": ["a"]}`)

	require.NoError(t, err)
	assert.Equal(t, "stop", got.Decision)
	assert.Equal(t, []string{"a"}, got.Gaps)
}

func TestParseJSONStripsFencesAndProse(t *testing.T) {
	response := "Sure, here is the verdict:\n```json\n{\"decision\": \"continue\", \"gaps\": []}\n```\nLet me know if you need more."

	got, err := ParseJSON[payload](response)

	require.NoError(t, err)
	assert.Equal(t, "continue", got.Decision)
}

func TestParseJSONRejectsResponseWithoutObject(t *testing.T) {
	_, err := ParseJSON[payload]("I could not decide.")

	assert.Error(t, err)
}

func TestParseJSONRejectsMalformedObject(t *testing.T) {
	_, err := ParseJSON[payload](`{"decision": }`)

	assert.Error(t, err)
}
