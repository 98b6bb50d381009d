package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Feed frame delimiters: "<SYMBOL>:|:<BID>;<ASK>".
const (
	tickFrameDelimiter = ":|:"
	tickFieldDelimiter = ";"
)

// Tick is one bid/ask quote from the live feed channel.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
}

// ParseTick decodes a feed frame. Malformed frames are rejected so the
// stream handler can drop them without touching storage.
func ParseTick(msg string) (Tick, error) {
	head, rest, found := strings.Cut(msg, tickFrameDelimiter)
	if !found || head == "" {
		return Tick{}, fmt.Errorf("malformed tick frame %q", msg)
	}
	parts := strings.Split(rest, tickFieldDelimiter)
	if len(parts) != 2 {
		return Tick{}, fmt.Errorf("malformed tick quote %q", rest)
	}
	bid, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Tick{}, fmt.Errorf("parsing bid %q: %w", parts[0], err)
	}
	ask, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Tick{}, fmt.Errorf("parsing ask %q: %w", parts[1], err)
	}
	return Tick{Symbol: head, Bid: bid, Ask: ask}, nil
}
