package domain

import "testing"

func TestTradeStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from TradeStatus
		to   TradeStatus
		want bool
	}{
		{"requested to quoted", TradeRequested, TradeQuoted, true},
		{"quoted to submitting", TradeQuoted, TradeSubmitting, true},
		{"submitting to awaiting", TradeSubmitting, TradeAwaitingConfirmation, true},
		{"awaiting to confirmed", TradeAwaitingConfirmation, TradeConfirmed, true},
		{"requested to failed", TradeRequested, TradeFailed, true},
		{"awaiting to failed", TradeAwaitingConfirmation, TradeFailed, true},
		{"skip a state", TradeRequested, TradeSubmitting, false},
		{"skip to confirmed", TradeQuoted, TradeConfirmed, false},
		{"backwards", TradeSubmitting, TradeQuoted, false},
		{"self transition", TradeQuoted, TradeQuoted, false},
		{"out of confirmed", TradeConfirmed, TradeFailed, false},
		{"out of failed", TradeFailed, TradeConfirmed, false},
		{"failed to failed", TradeFailed, TradeFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTradeStatus_IsTerminal(t *testing.T) {
	terminal := map[TradeStatus]bool{
		TradeRequested:            false,
		TradeQuoted:               false,
		TradeSubmitting:           false,
		TradeAwaitingConfirmation: false,
		TradeConfirmed:            true,
		TradeFailed:               true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestQuote_IsDirect(t *testing.T) {
	direct := &Quote{RoutePlan: []RouteHop{{AMMKey: "pool1"}}}
	if !direct.IsDirect() {
		t.Error("single-hop quote should be direct")
	}

	indirect := &Quote{RoutePlan: []RouteHop{{AMMKey: "pool1"}, {AMMKey: "pool2"}}}
	if indirect.IsDirect() {
		t.Error("two-hop quote should not be direct")
	}
}

func TestUnsignedTransactionSet_Swap(t *testing.T) {
	set := UnsignedTransactionSet{
		{Role: RoleSetup, Payload: []byte{1}},
		{Role: RoleSwap, Payload: []byte{2}},
		{Role: RoleCleanup, Payload: []byte{3}},
	}
	tx := set.Swap()
	if tx == nil {
		t.Fatal("expected swap transaction")
	}
	if tx.Payload[0] != 2 {
		t.Errorf("wrong transaction returned: %v", tx.Payload)
	}

	if (UnsignedTransactionSet{{Role: RoleSetup}}).Swap() != nil {
		t.Error("expected nil for set without swap role")
	}
}
