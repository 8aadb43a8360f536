package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"smartchair/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(func() time.Time { return fixedNow }, zap.NewNop())
}

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	raw, err := DecodeBody(strings.NewReader(body), 1<<20)
	require.NoError(t, err)
	return raw
}

func TestNormalize_ValidReading(t *testing.T) {
	v := newTestValidator()
	entry, coercions := v.Normalize(decode(t, `{"posture":"Bad","distance":42,"sitting_time":16}`))

	assert.Empty(t, coercions)
	assert.Equal(t, "Bad", entry.Posture)
	assert.Equal(t, 42.0, entry.Distance)
	assert.Equal(t, 16.0, entry.SittingTime)
	require.NotNil(t, entry.Timestamp)
	assert.Equal(t, "2025-01-02T03:04:05.000Z", entry.Timestamp.String())
	assert.Zero(t, v.Coercions())
}

func TestNormalize_MalformedNumbersBecomeZero(t *testing.T) {
	cases := map[string]string{
		"non-numeric string": `{"distance":"abc","sitting_time":"abc"}`,
		"NaN string":         `{"distance":"NaN","sitting_time":"NaN"}`,
		"Infinity string":    `{"distance":"Infinity","sitting_time":"-Infinity"}`,
		"overflow":           `{"distance":1e400,"sitting_time":-1e400}`,
		"bool":               `{"distance":true,"sitting_time":false}`,
		"null":               `{"distance":null,"sitting_time":null}`,
		"object":             `{"distance":{"cm":3},"sitting_time":[1]}`,
		"missing":            `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			entry, _ := newTestValidator().Normalize(decode(t, body))
			assert.Equal(t, 0.0, entry.Distance)
			assert.Equal(t, 0.0, entry.SittingTime)
		})
	}
}

func TestNormalize_NumericStringsAreParsed(t *testing.T) {
	entry, coercions := newTestValidator().Normalize(decode(t, `{"distance":" 12.5 ","sitting_time":"30"}`))
	assert.Empty(t, coercions)
	assert.Equal(t, 12.5, entry.Distance)
	assert.Equal(t, 30.0, entry.SittingTime)
}

func TestNormalize_Posture(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"posture":"Good"}`, "Good"},
		{`{"posture":"  Good "}`, "Good"},
		{`{}`, models.UnknownPosture},
		{`{"posture":null}`, models.UnknownPosture},
		{`{"posture":""}`, models.UnknownPosture},
		{`{"posture":{"x":1}}`, models.UnknownPosture},
		{`{"posture":["Bad"]}`, models.UnknownPosture},
		{`{"posture":3}`, "3"},
		{`{"posture":true}`, "true"},
	}
	for _, tc := range cases {
		entry, _ := newTestValidator().Normalize(decode(t, tc.body))
		assert.Equal(t, tc.want, entry.Posture, tc.body)
	}
}

func TestNormalize_ScenarioB(t *testing.T) {
	v := newTestValidator()
	entry, coercions := v.Normalize(decode(t, `{"distance":"notanumber"}`))

	assert.Equal(t, models.UnknownPosture, entry.Posture)
	assert.Equal(t, 0.0, entry.Distance)
	assert.Equal(t, 0.0, entry.SittingTime)
	// 只有 distance 属于回退；缺失字段不计
	require.Len(t, coercions, 1)
	assert.Equal(t, "distance", coercions[0].Field)
	assert.Equal(t, uint64(1), v.Coercions())
}

func TestNormalize_IgnoresClientTimestamp(t *testing.T) {
	entry, _ := newTestValidator().Normalize(decode(t, `{"posture":"Good","timestamp":"1999-01-01T00:00:00Z"}`))
	assert.Equal(t, fixedNow, entry.Timestamp.Time())
}

func TestDecodeBody(t *testing.T) {
	raw, err := DecodeBody(strings.NewReader(""), 64)
	require.NoError(t, err)
	assert.Empty(t, raw)

	raw, err = DecodeBody(strings.NewReader("   \n"), 64)
	require.NoError(t, err)
	assert.Empty(t, raw)

	for _, bad := range []string{`{"posture":`, `not json`, `[1,2]`, `"str"`, `{} {}`} {
		_, err := DecodeBody(strings.NewReader(bad), 64)
		assert.True(t, errors.Is(err, ErrInvalidBody), bad)
	}

	_, err = DecodeBody(strings.NewReader(`{"posture":"`+strings.Repeat("x", 100)+`"}`), 64)
	assert.True(t, errors.Is(err, ErrInvalidBody))
}
