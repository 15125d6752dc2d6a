package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestPrintFilterTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := printFilterTable(&buf, []domain.FlightFilter{{
		ID:          "f1",
		Name:        "London",
		Routes:      []domain.Route{{Origin: "JFK", Destination: "LHR"}, {Origin: "EWR", Destination: "LHR"}},
		DepartDate:  time.Date(2026, 12, 10, 0, 0, 0, 0, time.UTC),
		TargetPrice: 450,
		Currency:    "USD",
		Frequency:   domain.TierDaily,
		Active:      true,
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "JFK-LHR,EWR-LHR")
	assert.Contains(t, out, "2026-12-10")
	assert.Contains(t, out, "450.00 USD")
}

func TestPrintAlertTable_NilPrices(t *testing.T) {
	t.Parallel()

	price := 389.5
	var buf bytes.Buffer
	err := printAlertTable(&buf, []domain.FlightAlert{
		{ID: "a1", FilterID: "f1", Status: domain.AlertActive, TargetPrice: 400},
		{ID: "a2", FilterID: "f2", Status: domain.AlertTriggered, TargetPrice: 400, CurrentPrice: &price, LastTriggeredPrice: &price},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "389.50")
	assert.Contains(t, out, "-")
}

func TestReadFilterRequest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
user_id: u-1
routes:
  - origin: JFK
    destination: LHR
depart_date: 2026-12-10T00:00:00Z
target_price: 450
channels: [email, slack]
contact:
  email: traveler@example.com
`), 0o600))

	req, err := readFilterRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "u-1", req.UserID)
	require.Len(t, req.Routes, 1)
	assert.Equal(t, "JFK", req.Routes[0].Origin)
	assert.Equal(t, 2026, req.DepartDate.Year())
	assert.InDelta(t, 450, req.TargetPrice, 0.001)
	assert.Equal(t, []domain.Channel{domain.ChannelEmail, domain.ChannelSlack}, req.Channels)
	assert.Equal(t, "traveler@example.com", req.Contact.Email)

	_, err = readFilterRequest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = readFilterRequest("")
	require.Error(t, err)
}
