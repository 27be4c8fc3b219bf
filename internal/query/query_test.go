package query

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToQueryParams(t *testing.T) {
	empty := ""
	active := "ACTIVO"
	var nilTime *time.Time
	no := false

	tests := []struct {
		name   string
		filter Filter
		want   map[string]string
	}{
		{
			name:   "drops nil start date",
			filter: Filter{"fileStatus": "ACTIVO", "startDate": nil},
			want:   map[string]string{"fileStatus": "ACTIVO"},
		},
		{
			name:   "drops empty and nil pointers",
			filter: Filter{"a": "", "b": &empty, "c": nilTime, "d": &active},
			want:   map[string]string{"d": "ACTIVO"},
		},
		{
			name:   "keeps false",
			filter: Filter{"isAutomaticRenewal": false, "other": &no},
			want:   map[string]string{"isAutomaticRenewal": "false", "other": "false"},
		},
		{
			name:   "formats ints and dates",
			filter: Filter{"page": 3, "startDate": time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)},
			want:   map[string]string{"page": "3", "startDate": "2024-01-31"},
		},
		{
			name:   "empty filter",
			filter: Filter{},
			want:   map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToQueryParams(tt.filter))
		})
	}
}

func TestToValuesEncodesOnce(t *testing.T) {
	v := ToValues(Filter{"applicantName": "José Pérez", "startDate": nil})
	assert.Equal(t, "applicantName=Jos%C3%A9+P%C3%A9rez", v.Encode())
}

func TestDescribe(t *testing.T) {
	got := Describe(Filter{"status": "PAGADA", "department": "CORTES", "region": ""})
	assert.Equal(t, "department: CORTES, status: PAGADA", got)
}

func applications(t *testing.T) *catalog.Resource {
	t.Helper()
	r, err := catalog.New().Get("applications")
	require.NoError(t, err)
	return r
}

func TestParseFilter(t *testing.T) {
	res := applications(t)
	vals := url.Values{
		"fileStatus":         {"ACTIVO"},
		"startDate":          {"2024-02-01"},
		"isAutomaticRenewal": {"false"},
		"companyName":        {""},
		"page":               {"2"},
	}

	f, err := ParseFilter(res, vals, "page")
	require.NoError(t, err)

	assert.Equal(t, "ACTIVO", f["fileStatus"])
	assert.Equal(t, false, f["isAutomaticRenewal"])
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), f["startDate"])
	assert.NotContains(t, f, "page")

	params := ToQueryParams(f)
	assert.NotContains(t, params, "companyName")
	assert.Equal(t, "false", params["isAutomaticRenewal"])
}

func TestParseFilterErrors(t *testing.T) {
	res := applications(t)

	_, err := ParseFilter(res, url.Values{"nope": {"x"}})
	assert.True(t, errors.Is(err, ErrUnknownFilter))

	_, err = ParseFilter(res, url.Values{"isAutomaticRenewal": {"maybe"}})
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = ParseFilter(res, url.Values{"startDate": {"31/01/2024"}})
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestParseFilterJSON(t *testing.T) {
	res := applications(t)

	f, err := ParseFilterJSON(res, map[string]any{
		"fileStatus":         "ACTIVO",
		"startDate":          nil,
		"isAutomaticRenewal": true,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"fileStatus": "ACTIVO", "isAutomaticRenewal": "true"}, ToQueryParams(f))

	_, err = ParseFilterJSON(res, map[string]any{"fileStatus": []any{"x"}})
	assert.True(t, errors.Is(err, ErrInvalidValue))
}
