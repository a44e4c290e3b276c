package broker

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

type fakeLTP map[string]decimal.Decimal

func (f fakeLTP) LTP(symbol string) (decimal.Decimal, bool) {
	v, ok := f[symbol]
	return v, ok
}

func TestPaperGatewayFillsAtLTP(t *testing.T) {
	gw := NewPaperGateway(fakeLTP{"NIFTY": decimal.NewFromInt(25000)})
	ack, err := gw.PlaceOrder(context.Background(), types.OrderRequest{
		Symbol: "NIFTY", Side: types.SideBuy, Quantity: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatal(err)
	}
	status, err := gw.OrderStatus(context.Background(), ack.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != types.OrderStatusComplete {
		t.Fatalf("expected complete, got %s", status.Status)
	}
	if !status.AveragePrice.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("expected fill at 25000, got %s", status.AveragePrice)
	}
}

func TestPaperGatewayRejectsUnknownSymbol(t *testing.T) {
	gw := NewPaperGateway(fakeLTP{})
	ack, err := gw.PlaceOrder(context.Background(), types.OrderRequest{Symbol: "GHOST", Quantity: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatal(err)
	}
	status, _ := gw.OrderStatus(context.Background(), ack.OrderID)
	if status.Status != types.OrderStatusRejected {
		t.Fatalf("expected rejected, got %s", status.Status)
	}
}

func TestLiveGatewayTracksPostback(t *testing.T) {
	gw := NewLiveGateway(nil, func(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
		return types.OrderAck{OrderID: "live-1", BrokerOrderID: "b-1"}, nil
	})
	ack, err := gw.PlaceOrder(context.Background(), types.OrderRequest{Symbol: "NIFTY", Quantity: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatal(err)
	}
	status, _ := gw.OrderStatus(context.Background(), ack.OrderID)
	if status.Status != types.OrderStatusPending {
		t.Fatalf("expected pending before postback, got %s", status.Status)
	}

	gw.ApplyPostback(PostbackEvent{OrderID: ack.OrderID, Status: types.OrderStatusRejected, RejectionReason: "insufficient margin"})
	status, _ = gw.OrderStatus(context.Background(), ack.OrderID)
	if status.Status != types.OrderStatusRejected {
		t.Fatalf("expected rejected after postback, got %s", status.Status)
	}
	if status.RejectionReason != "insufficient margin" {
		t.Fatalf("expected rejection reason propagated, got %q", status.RejectionReason)
	}
}
