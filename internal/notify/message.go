package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/price"
)

// ErrMalformedMessage is returned when a payload cannot be decoded into a Message.
var ErrMalformedMessage = errors.New("malformed notification")

// Message is a trade-confirmation notification.
type Message struct {
	MarketID          string                `json:"marketId"`
	NewYesProbability float64               `json:"newYesProbability"`
	NewNoProbability  float64               `json:"newNoProbability"`
	Provenance        string                `json:"provenance"`
	Classification    domain.Classification `json:"sourceClassification"`
}

// wireMessage accepts probabilities as JSON numbers or numeric strings.
type wireMessage struct {
	MarketID          string          `json:"marketId"`
	NewYesProbability json.RawMessage `json:"newYesProbability"`
	NewNoProbability  json.RawMessage `json:"newNoProbability"`
	Provenance        string          `json:"provenance"`
	Classification    string          `json:"sourceClassification"`
}

// DecodeMessage parses a JSON payload. Probability fields must be finite
// numbers; a missing no-probability is derived from the yes-probability.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if w.MarketID == "" {
		return Message{}, fmt.Errorf("%w: missing marketId", ErrMalformedMessage)
	}

	yes, err := parseProbability(w.NewYesProbability)
	if err != nil {
		return Message{}, fmt.Errorf("%w: newYesProbability: %v", ErrMalformedMessage, err)
	}

	no := price.Complement(yes)
	if len(w.NewNoProbability) > 0 && string(w.NewNoProbability) != "null" {
		no, err = parseProbability(w.NewNoProbability)
		if err != nil {
			return Message{}, fmt.Errorf("%w: newNoProbability: %v", ErrMalformedMessage, err)
		}
	}

	return Message{
		MarketID:          w.MarketID,
		NewYesProbability: yes,
		NewNoProbability:  no,
		Provenance:        w.Provenance,
		Classification:    domain.Classification(w.Classification),
	}, nil
}

func parseProbability(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("not a number: %s", string(raw))
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
	}
	if !price.Finite(f) {
		return 0, fmt.Errorf("not finite: %v", f)
	}
	return f, nil
}
