package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-chart-lab/internal/domain"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{
		"marketId": "0x01",
		"newYesProbability": 0.62,
		"newNoProbability": 0.38,
		"provenance": "0xabc",
		"sourceClassification": "confirmed-event"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "0x01", msg.MarketID)
	assert.Equal(t, 0.62, msg.NewYesProbability)
	assert.Equal(t, 0.38, msg.NewNoProbability)
	assert.Equal(t, "0xabc", msg.Provenance)
	assert.Equal(t, domain.ClassConfirmedEvent, msg.Classification)
}

func TestDecodeMessage_NumericStrings(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"marketId":"m","newYesProbability":"0.25","sourceClassification":"sync-update"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.25, msg.NewYesProbability)
	assert.Equal(t, 0.75, msg.NewNoProbability)
	assert.Equal(t, domain.ClassSyncUpdate, msg.Classification)
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"missing market", `{"newYesProbability":0.5}`},
		{"missing yes", `{"marketId":"m"}`},
		{"null yes", `{"marketId":"m","newYesProbability":null}`},
		{"non-numeric yes", `{"marketId":"m","newYesProbability":"abc"}`},
		{"non-finite yes", `{"marketId":"m","newYesProbability":"NaN"}`},
		{"boolean yes", `{"marketId":"m","newYesProbability":true}`},
		{"non-numeric no", `{"marketId":"m","newYesProbability":0.5,"newNoProbability":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.payload))
			assert.True(t, errors.Is(err, ErrMalformedMessage), "got %v", err)
		})
	}
}
