package collectionstore_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

func Test_FilterRequest_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		validate func(t *testing.T, req cs.FilterRequest)
	}{
		{
			name: "insideDateRanges defaults to true when absent",
			body: `{}`,
			validate: func(t *testing.T, req cs.FilterRequest) {
				assert.True(t, req.InsideDateRanges)
			},
		},
		{
			name: "explicit false is kept",
			body: `{"insideDateRanges": false}`,
			validate: func(t *testing.T, req cs.FilterRequest) {
				assert.False(t, req.InsideDateRanges)
			},
		},
		{
			name: "equalityFilters alias is merged without overriding filters",
			body: `{"filters": {"CarId": "c1"}, "equalityFilters": {"CarId": "c2", "CustomerId": "u1"}}`,
			validate: func(t *testing.T, req cs.FilterRequest) {
				assert.Equal(t, map[string]any{"CarId": "c1", "CustomerId": "u1"}, req.Filters)
			},
		},
		{
			name: "ignoreRecordId alias",
			body: `{"ignoreRecordId": "b7"}`,
			validate: func(t *testing.T, req cs.FilterRequest) {
				assert.Equal(t, "b7", req.IgnoreRecordID)
			},
		},
		{
			name: "ignoreRecord wins over its alias",
			body: `{"ignoreRecord": "b1", "ignoreRecordId": "b7"}`,
			validate: func(t *testing.T, req cs.FilterRequest) {
				assert.Equal(t, "b1", req.IgnoreRecordID)
			},
		},
		{
			name: "sortBy keeps document order",
			body: `{"sortBy": {"Surname": "desc", "Forename": "asc", "EmployeeId": 1}}`,
			validate: func(t *testing.T, req cs.FilterRequest) {
				assert.Equal(t, cs.SortSpec{
					{Field: "Surname", Desc: true},
					{Field: "Forename"},
					{Field: "EmployeeId"},
				}, req.SortBy)
			},
		},
		{
			name: "date ranges with open bounds",
			body: `{"dateRanges": {"StartDate": {"start": "2025-01-01", "end": null}, "ReturnDate": {"end": ""}}}`,
			validate: func(t *testing.T, req cs.FilterRequest) {
				require.Contains(t, req.DateRanges, "StartDate")
				assert.True(t, day(1).Equal(*req.DateRanges["StartDate"].Start))
				assert.Nil(t, req.DateRanges["StartDate"].End)
				assert.True(t, req.DateRanges["ReturnDate"].IsUnbounded())
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var req cs.FilterRequest

			err := json.Unmarshal([]byte(tc.body), &req)

			require.NoError(t, err)
			tc.validate(t, req)
		})
	}
}

func Test_SortSpec_MarshalJSON_KeepsOrder(t *testing.T) {
	spec := cs.SortSpec{{Field: "b", Desc: true}, {Field: "a"}}

	data, err := json.Marshal(spec)

	require.NoError(t, err)
	assert.JSONEq(t, `{"b":"desc","a":"asc"}`, string(data))
	assert.Equal(t, `{"b":"desc","a":"asc"}`, string(data))
}

func Test_NewPagination(t *testing.T) {
	testCases := []struct {
		name               string
		total, page, limit int
		expectedPages      int
	}{
		{"exact pages", 20, 1, 10, 2},
		{"partial last page", 21, 3, 10, 3},
		{"no results", 0, 1, 10, 0},
		{"unlimited with results", 7, 1, 0, 1},
		{"unlimited without results", 0, 1, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := cs.NewPagination(tc.total, tc.page, tc.limit)

			assert.Equal(t, tc.expectedPages, p.Pages)
			assert.Equal(t, tc.total, p.Total)
			assert.Equal(t, tc.page, p.Page)
		})
	}
}
