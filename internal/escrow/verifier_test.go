package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mkravets/blockmart/internal/ledger"
)

func TestVerifier_Exactness(t *testing.T) {
	payer := common.HexToAddress(testBuyer)
	receiver := common.HexToAddress(testSeller)

	match := ledger.Block{
		Height: 42,
		Transfer: &ledger.Transfer{
			Memo: 777, From: payer, To: receiver, Amount: 1000,
		},
	}

	cases := []struct {
		name   string
		blocks []ledger.Block
		err    error
		amount uint64
		block  uint64
		token  uint64
		want   bool
	}{
		{"exact match", []ledger.Block{match}, nil, 1000, 42, 777, true},
		{"wrong memo", []ledger.Block{match}, nil, 1000, 42, 778, false},
		{"amount off by one low", []ledger.Block{match}, nil, 999, 42, 777, false},
		{"amount off by one high", []ledger.Block{match}, nil, 1001, 42, 777, false},
		{"wrong block", []ledger.Block{match}, nil, 1000, 41, 777, false},
		{"empty ledger", nil, nil, 1000, 42, 777, false},
		{"transport error fails closed", nil, errors.New("connection refused"), 1000, 42, 777, false},
		{"block without transfer", []ledger.Block{{Height: 42}}, nil, 1000, 42, 777, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := NewLedgerVerifier(&fakeLedgerClient{blocks: tc.blocks, err: tc.err}, testLogger())
			got := v.Verify(context.Background(), payer, receiver, tc.amount, tc.block, tc.token)
			if got != tc.want {
				t.Errorf("Verify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifier_WrongParties(t *testing.T) {
	payer := common.HexToAddress(testBuyer)
	receiver := common.HexToAddress(testSeller)
	other := common.HexToAddress("0x3333333333333333333333333333333333333333")

	client := &fakeLedgerClient{blocks: []ledger.Block{{
		Height:   42,
		Transfer: &ledger.Transfer{Memo: 777, From: payer, To: receiver, Amount: 1000},
	}}}
	v := NewLedgerVerifier(client, testLogger())
	ctx := context.Background()

	if !v.Verify(ctx, payer, receiver, 1000, 42, 777) {
		t.Error("expected exact parties to verify")
	}
	if v.Verify(ctx, other, receiver, 1000, 42, 777) {
		t.Error("expected wrong payer to fail")
	}
	if v.Verify(ctx, payer, other, 1000, 42, 777) {
		t.Error("expected wrong receiver to fail")
	}
}
