package period

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestParsePeriod(t *testing.T) {
	month, err := ParsePeriod("2024-04")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), month)

	for _, token := range []string{"", "2024", "2024-13", "04-2024", "2024-4"} {
		_, err := ParsePeriod(token)
		assert.ErrorIs(t, err, ErrInvalidPeriod, token)
	}
}

func TestFiscalYearOf(t *testing.T) {
	cases := []struct {
		month time.Month
		year  int
		want  string
	}{
		{time.April, 2024, "2024-25"},
		{time.December, 2024, "2024-25"},
		{time.January, 2025, "2024-25"},
		{time.March, 2025, "2024-25"},
		{time.April, 2025, "2025-26"},
		{time.March, 2024, "2023-24"},
	}
	for _, tc := range cases {
		got := FiscalYearOf(time.Date(tc.year, tc.month, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, tc.want, got, "%d-%02d", tc.year, tc.month)
	}
}

func TestKeyFor(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	orgID := node.Generate()
	clientID := node.Generate()

	key, err := KeyFor(orgID, clientID, "2025-01")
	assert.NoError(t, err)
	assert.Equal(t, "2024-25", key.FiscalYear)
	assert.NoError(t, key.Validate())

	_, err = KeyFor(orgID, 0, "2025-01")
	assert.ErrorIs(t, err, ErrInvalidClient)

	_, err = KeyFor(orgID, clientID, "bogus")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestKeyValidateMismatchedFiscalYear(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	key := Key{
		OrgID:      node.Generate(),
		ClientID:   node.Generate(),
		Period:     "2024-06",
		FiscalYear: "2023-24",
	}
	assert.ErrorIs(t, key.Validate(), ErrInvalidFiscalYear)
}

func TestMonthsOf(t *testing.T) {
	months, err := MonthsOf("2024-25")
	assert.NoError(t, err)
	assert.Len(t, months, 12)
	assert.Equal(t, "2024-04", months[0])
	assert.Equal(t, "2024-12", months[8])
	assert.Equal(t, "2025-01", months[9])
	assert.Equal(t, "2025-03", months[11])

	_, err = MonthsOf("2024-26")
	assert.ErrorIs(t, err, ErrInvalidFiscalYear)
	_, err = MonthsOf("garbage")
	assert.ErrorIs(t, err, ErrInvalidFiscalYear)
}
