package cursorapi

import (
	"encoding/json"
	"testing"

	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	"github.com/smallbiznis/usagelens/internal/ingest/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryDate(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: `1704067200000`, want: "2024-01-01T00:00:00Z"},
		{in: `1704067200`, want: "2024-01-01T00:00:00Z"},
		{in: `"1704067200000"`, want: "2024-01-01T00:00:00Z"},
		{in: `"2024-01-01T10:00:00.000Z"`, want: "2024-01-01T10:00:00.000Z"},
		{in: `null`, want: ""},
		{in: ``, want: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, entryDate(json.RawMessage(tc.in)), tc.in)
	}
}

func TestToTableValidates(t *testing.T) {
	five := int64(5)
	entries := []Entry{
		{Date: json.RawMessage(`1704067200000`), Email: "a@x.com", IsActive: true, SubscriptionIncludedReqs: &five},
		{Date: json.RawMessage(`1704153600000`), Email: "b@x.com"},
		{Date: json.RawMessage(`null`), Email: "c@x.com"},
	}

	table := ToTable(entries)
	for _, col := range ingestdomain.RequiredColumns {
		assert.True(t, table.HasColumn(col), col)
	}
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, "0", table.Rows[1].Values[ingestdomain.ColumnSubscriptionIncludedReqs])
	assert.Equal(t, "", table.Rows[1].Values[ingestdomain.ColumnUsageBasedReqs])

	res, err := validator.Validate(table)
	require.NoError(t, err)
	require.Len(t, res.ValidRows, 2)
	assert.Nil(t, res.ValidRows[0].Fields.UsageBasedReqs)
	require.Len(t, res.InvalidRows, 1)
	assert.Equal(t, 4, res.InvalidRows[0].Line)
}
