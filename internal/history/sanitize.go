package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"mt4bridge/internal/domain"
	"mt4bridge/internal/ports"
)

// Response is a decoded historical payload from the terminal.
type Response struct {
	Action  string
	Status  string
	Symbol  string
	Candles []domain.Candle
}

type rawResponse struct {
	Action   string      `json:"_action"`
	Response string      `json:"_response"`
	Symbol   string      `json:"_symbol"`
	Data     []rawCandle `json:"_data"`
}

type rawCandle struct {
	Time       string  `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	TickVolume int64   `json:"tick_volume"`
	Spread     int64   `json:"spread"`
	RealVolume int64   `json:"real_volume"`
}

const statusNotAvailable = "NOT_AVAILABLE"

// Sanitize normalizes the terminal's relaxed payload conventions into strict
// JSON: single quotes, Python-style boolean literals and concatenated frames.
// Remote text is never evaluated; it is normalized and then decoded.
func Sanitize(raw string) string {
	s := strings.ReplaceAll(raw, "'", `"`)
	s = strings.ReplaceAll(s, "False", "false")
	s = strings.ReplaceAll(s, "True", "true")
	// Concatenated frames: keep the first object, drop the rest.
	if i := strings.Index(s, "}{"); i >= 0 {
		s = s[:i+1]
	}
	return s
}

// DecodePayload sanitizes and strictly parses one historical response.
// A payload that does not decode, or whose candles carry unparsable
// timestamps, is rejected whole; callers must not persist anything from it.
func DecodePayload(raw string) (*Response, error) {
	var decoded rawResponse
	if err := json.Unmarshal([]byte(Sanitize(raw)), &decoded); err != nil {
		return nil, fmt.Errorf("decoding historical payload: %w: %w", ports.ErrPayloadMalformed, err)
	}

	if decoded.Response == statusNotAvailable {
		return nil, fmt.Errorf("terminal reported %s for %q: %w", statusNotAvailable, decoded.Symbol, ports.ErrNotAvailable)
	}
	if decoded.Data == nil {
		return nil, fmt.Errorf("historical payload has no _data list: %w", ports.ErrPayloadMalformed)
	}

	out := &Response{
		Action:  decoded.Action,
		Status:  decoded.Response,
		Symbol:  decoded.Symbol,
		Candles: make([]domain.Candle, 0, len(decoded.Data)),
	}
	for i, rc := range decoded.Data {
		t, err := domain.ParseTimestamp(rc.Time)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w: %w", i, ports.ErrPayloadMalformed, err)
		}
		out.Candles = append(out.Candles, domain.Candle{
			Time:       t,
			Open:       rc.Open,
			High:       rc.High,
			Low:        rc.Low,
			Close:      rc.Close,
			TickVolume: rc.TickVolume,
			Spread:     rc.Spread,
			RealVolume: rc.RealVolume,
		})
	}
	return out, nil
}
