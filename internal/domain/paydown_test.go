package domain

import "testing"

func TestRequiredParties(t *testing.T) {
	plain := Paydown{Kind: PaydownOnly}
	if got := plain.RequiredParties(); len(got) != 1 || got[0] != PartyWarehouse {
		t.Fatalf("plain required parties = %v, want [warehouse]", got)
	}

	sell := Paydown{Kind: PaydownAndSell}
	if got := sell.RequiredParties(); len(got) != 2 {
		t.Fatalf("sell required parties = %v, want warehouse and buyer", got)
	}
}

func TestFullyAccepted(t *testing.T) {
	tests := []struct {
		name     string
		kind     PaydownKind
		accepted []Party
		want     bool
	}{
		{"plain none", PaydownOnly, nil, false},
		{"plain warehouse", PaydownOnly, []Party{PartyWarehouse}, true},
		{"sell warehouse only", PaydownAndSell, []Party{PartyWarehouse}, false},
		{"sell buyer only", PaydownAndSell, []Party{PartyBuyer}, false},
		{"sell both", PaydownAndSell, []Party{PartyBuyer, PartyWarehouse}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paydown{Kind: tt.kind, PartiesAccepted: tt.accepted}
			if got := p.FullyAccepted(); got != tt.want {
				t.Fatalf("FullyAccepted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	if !PledgeStateClosed.Terminal() || !PledgeStateCancelled.Terminal() {
		t.Fatal("closed and cancelled pledges must be terminal")
	}
	if PledgeStateExecuted.Terminal() {
		t.Fatal("an executed pledge still awaits closing")
	}
	if !PaydownStateExecuted.Terminal() || !PaydownStateCancelled.Terminal() {
		t.Fatal("executed and cancelled paydowns must be terminal")
	}
	if PaydownStateProposed.Terminal() || PaydownStateAccepted.Terminal() {
		t.Fatal("open paydown states must not be terminal")
	}
}
