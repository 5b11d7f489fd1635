package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datez/internal/model"
)

func TestTotalDays_SignBranches(t *testing.T) {
	assert.Equal(t, `"Launch": 1096 days ago`, TotalDays("Launch", 1096))
	assert.Equal(t, `"Launch": today`, TotalDays("Launch", 0))
	assert.Equal(t, `"Birthday": 360 days away`, TotalDays("Birthday", -360))
}

func TestParts(t *testing.T) {
	assert.Equal(t, `"Launch": 3 years 0 weeks 0 days`, Parts("Launch", model.Parts{Years: 3}))
}

func TestCombined(t *testing.T) {
	assert.Equal(t,
		`"Launch": 3 years 0 weeks 0 days ago (1096 days ago)`,
		Combined("Launch", 1096, model.Parts{Years: 3}))
	assert.Equal(t,
		`"Birthday": 0 years 51 weeks 3 days away (360 days away)`,
		Combined("Birthday", -360, model.Parts{Weeks: 51, Days: 3}))
	assert.Equal(t, `"Now": today`, Combined("Now", 0, model.Parts{}))
}

func TestLabelIsVerbatim(t *testing.T) {
	assert.Equal(t, `"say "hi"": today`, TotalDays(`say "hi"`, 0))
}

func TestLine(t *testing.T) {
	r := model.Result{Label: "Launch", TotalDays: 1096, Parts: model.Parts{Years: 3}}

	assert.Equal(t, `"Launch": 1096 days ago`, Line(ModeDays, r))
	assert.Equal(t, `"Launch": 3 years 0 weeks 0 days`, Line(ModeParts, r))
	assert.Equal(t, `"Launch": 3 years 0 weeks 0 days ago (1096 days ago)`, Line(ModeBoth, r))

	r.Err = errors.New("invalid date")
	assert.Equal(t, `"Launch": error: invalid date`, Line(ModeBoth, r))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("DAYS")
	assert.True(t, ok)
	assert.Equal(t, ModeDays, m)

	m, ok = ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, ModeBoth, m)

	m, ok = ParseMode("verbose")
	assert.False(t, ok)
	assert.Equal(t, ModeBoth, m)
}

func TestSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)

	require.NoError(t, sink.Write([]string{"a", "b"}))
	assert.Equal(t, "a\nb\n", buf.String())
}
