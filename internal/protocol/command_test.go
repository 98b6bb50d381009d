package protocol

import (
	"testing"

	"mt4bridge/internal/domain"
)

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"heartbeat", Heartbeat(), "HEARTBEAT"},
		{"track prices", TrackPrices(), "TRACK_PRICES"},
		{"track rates", TrackRates(), "TRACK_RATES"},
		{"open", TradeOpen(), "TRADE;OPEN"},
		{"modify", TradeModify(), "TRADE;MODIFY"},
		{"close", TradeClose(), "TRADE;CLOSE"},
		{"close partial", TradeClosePartial(), "TRADE;CLOSE_PARTIAL"},
		{"close magic", TradeCloseMagic(), "TRADE;CLOSE_MAGIC"},
		{"close all", TradeCloseAll(), "TRADE;CLOSE_ALL"},
		{"open trades", GetOpenTrades(), "TRADE;GET_OPEN_TRADES"},
		{"account info", GetAccountInfo(), "TRADE;GET_ACCOUNT_INFO"},
		{"hist", Hist("US.100+", "M15", "2024.01.01", "2025.04.25"), "HIST;US.100+;M15;2024.01.01;2025.04.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestHistRange(t *testing.T) {
	h1, _ := domain.TimeframeByName("H1")
	got := HistRange("EURUSD+", h1, "2020.01.01 00:00", "2020.01.02 00:00")
	want := "HIST;EURUSD+;H1;2020.01.01 00:00;2020.01.02 00:00"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
