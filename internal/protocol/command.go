// Package protocol formats the semicolon-delimited command messages the
// terminal expert advisor understands. Formatting only; transmission is the
// session's job.
package protocol

import (
	"fmt"

	"mt4bridge/internal/domain"
)

// Heartbeat checks that the command path to the terminal is alive.
func Heartbeat() string { return "HEARTBEAT" }

// Hist requests a candle series for one symbol and timeframe. Dates use the
// terminal's YYYY.MM.DD form; the start may carry a HH:MM component for
// intraday continuation requests.
func Hist(symbol, timeframe, from, to string) string {
	return fmt.Sprintf("HIST;%s;%s;%s;%s", symbol, timeframe, from, to)
}

// HistRange is Hist with time values, formatted per the timeframe: intraday
// ranges keep the minute component, daily and larger use the bare date.
func HistRange(symbol string, tf domain.Timeframe, from, to string) string {
	return Hist(symbol, tf.Name, from, to)
}

// TrackPrices asks the terminal to start publishing ticks on the feed channel.
func TrackPrices() string { return "TRACK_PRICES" }

// TrackRates asks the terminal to start publishing bar rates on the feed channel.
func TrackRates() string { return "TRACK_RATES" }

// Trade management commands. Parameters live in the terminal-side order
// template; the host only triggers the action.

func TradeOpen() string         { return "TRADE;OPEN" }
func TradeModify() string       { return "TRADE;MODIFY" }
func TradeClose() string        { return "TRADE;CLOSE" }
func TradeClosePartial() string { return "TRADE;CLOSE_PARTIAL" }
func TradeCloseMagic() string   { return "TRADE;CLOSE_MAGIC" }
func TradeCloseAll() string     { return "TRADE;CLOSE_ALL" }
func GetOpenTrades() string     { return "TRADE;GET_OPEN_TRADES" }
func GetAccountInfo() string    { return "TRADE;GET_ACCOUNT_INFO" }
