package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datez/internal/civil"
	"datez/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDecode_TaggedRecords(t *testing.T) {
	data := `[
		{"kind": "FixedDate", "label": "Launch", "date": "2020-01-01"},
		{"kind": "NextDate", "label": "Birthday", "date": {"count": 0, "month": 6, "day": 15}}
	]`

	s, err := Decode([]byte(data), FormatJSON)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	events := s.Events()
	assert.Equal(t, 0, events[0].ID)
	assert.Equal(t, model.Fixed{Label: "Launch", Date: civil.MustNew(2020, time.January, 1)}, events[0].Spec)
	assert.Equal(t, 1, events[1].ID)
	assert.Equal(t, model.Recurring{Label: "Birthday", Month: time.June, Day: 15}, events[1].Spec)
}

func TestDecode_ExternallyTaggedRecords(t *testing.T) {
	data := `[
		{"FixedDate": {"label": "Moved in", "date": "2019-09-01"}},
		{"NextDate": {"label": "Turning 40", "date": {"count": 3, "month": 2, "day": 29}}}
	]`

	s, err := Decode([]byte(data), FormatJSON)
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, model.KindFixed, events[0].Spec.Kind())
	assert.Equal(t, model.Recurring{Label: "Turning 40", Month: time.February, Day: 29, YearOffset: 3}, events[1].Spec)
}

func TestDecode_NegativeYear(t *testing.T) {
	s, err := Decode([]byte(`[{"kind": "FixedDate", "label": "Ides of March", "date": "-0044-03-15"}]`), FormatJSON)
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.Fixed{Label: "Ides of March", Date: civil.MustNew(-44, time.March, 15)}, events[0].Spec)
}

func TestDecode_JSONCCommentsAndTrailingCommas(t *testing.T) {
	data := `[
		// launched on new year's day
		{"kind": "FixedDate", "label": "Launch", "date": "2020-01-01",},
		/* block */
	]`

	s, err := Decode([]byte(data), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestDecode_YAML(t *testing.T) {
	data := `
- kind: FixedDate
  label: Launch
  date: 2020-01-01
- NextDate:
    label: Birthday
    date: {count: 1, month: 6, day: 15}
`
	s, err := Decode([]byte(data), FormatYAML)
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, model.Fixed{Label: "Launch", Date: civil.MustNew(2020, time.January, 1)}, events[0].Spec)
	assert.Equal(t, model.Recurring{Label: "Birthday", Month: time.June, Day: 15, YearOffset: 1}, events[1].Spec)
}

func TestDecode_RejectsImpossibleMonthDay(t *testing.T) {
	data := `[
		{"kind": "FixedDate", "label": "ok", "date": "2020-01-01"},
		{"kind": "NextDate", "label": "Nope", "date": {"count": 0, "month": 2, "day": 30}}
	]`

	s, err := Decode([]byte(data), FormatJSON)
	assert.Nil(t, s, "no partial event set")
	assert.ErrorIs(t, err, model.ErrInvalidDate)

	var recErr *model.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Index)
	assert.Equal(t, "Nope", recErr.Label)
}

func TestDecode_Failures(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{{`, model.ErrParse},
		{"not an array", `{"kind": "FixedDate"}`, model.ErrParse},
		{"unknown kind", `[{"kind": "Someday", "label": "x", "date": "2020-01-01"}]`, model.ErrParse},
		{"missing kind", `[{"label": "x", "date": "2020-01-01"}]`, model.ErrParse},
		{"missing date", `[{"kind": "FixedDate", "label": "x"}]`, model.ErrParse},
		{"fixed with object date", `[{"kind": "FixedDate", "label": "x", "date": {"count": 0, "month": 1, "day": 1}}]`, model.ErrParse},
		{"next with string date", `[{"kind": "NextDate", "label": "x", "date": "2020-01-01"}]`, model.ErrParse},
		{"day overflows int8", `[{"kind": "NextDate", "label": "x", "date": {"count": 0, "month": 1, "day": 300}}]`, model.ErrParse},
		{"count overflows int16", `[{"kind": "NextDate", "label": "x", "date": {"count": 40000, "month": 1, "day": 1}}]`, model.ErrParse},
		{"ambiguous", `[{"FixedDate": {"label": "a", "date": "2020-01-01"}, "NextDate": {"label": "b", "date": {"month": 1, "day": 1}}}]`, model.ErrParse},
		{"bad fixed date", `[{"kind": "FixedDate", "label": "x", "date": "2023-02-29"}]`, model.ErrInvalidDate},
		{"month 13", `[{"kind": "NextDate", "label": "x", "date": {"count": 0, "month": 13, "day": 1}}]`, model.ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Decode([]byte(tc.data), FormatJSON)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "data.json", `[{"FixedDate": {"label": "Launch", "date": "2020-01-01"}}]`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, path, s.Source())

	ev, ok := s.Event(0)
	require.True(t, ok)
	assert.Equal(t, "Launch", ev.Spec.DisplayLabel())

	_, ok = s.Event(1)
	assert.False(t, ok)
}

func TestLoad_YAMLByExtension(t *testing.T) {
	path := writeFile(t, "events.yml", "- kind: NextDate\n  label: Anniversary\n  date: {count: 0, month: 10, day: 3}\n")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, model.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load("")
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestNew_ValidatesSpecs(t *testing.T) {
	_, err := New([]model.DateSpec{model.Recurring{Label: "bad", Month: time.April, Day: 31}})
	assert.ErrorIs(t, err, model.ErrInvalidDate)

	_, err = New([]model.DateSpec{nil})
	assert.Error(t, err)

	s, err := New([]model.DateSpec{model.Recurring{Label: "leap", Month: time.February, Day: 29}})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestEvents_ReturnsCopy(t *testing.T) {
	s, err := New([]model.DateSpec{model.Fixed{Label: "a", Date: civil.MustNew(2000, time.January, 1)}})
	require.NoError(t, err)

	events := s.Events()
	events[0].ID = 99

	again := s.Events()
	assert.Equal(t, 0, again[0].ID)
}

func TestWith_AppendsInOrder(t *testing.T) {
	s, err := New([]model.DateSpec{model.Fixed{Label: "a", Date: civil.MustNew(2000, time.January, 1)}})
	require.NoError(t, err)

	merged, err := s.With(model.Recurring{Label: "b", Month: time.May, Day: 5})
	require.NoError(t, err)

	events := merged.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[1].ID)
	assert.Equal(t, "b", events[1].Spec.DisplayLabel())
	assert.Equal(t, 1, s.Len(), "original store is unchanged")

	_, err = s.With(model.Recurring{Label: "bad", Month: time.February, Day: 30})
	assert.ErrorIs(t, err, model.ErrInvalidDate)
}
