package broker

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// PostbackEvent is the broker's async order-status push, delivered over the
// postback websocket in live mode. EntryNode/ExitNode never poll the
// broker for status: they read whatever the gateway's local state was last
// updated to by a postback.
type PostbackEvent struct {
	OrderID         string          `json:"orderId"`
	Status          types.OrderStatus `json:"status"`
	FilledQuantity  float64         `json:"filledQuantity"`
	AveragePrice    float64         `json:"averagePrice"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
}

// LiveGateway submits orders to a real broker connection and tracks their
// status purely from postback pushes, never by polling. The upgrader below
// accepts a loopback connection used by tests/fixtures to simulate the
// broker's postback channel without a real exchange.
type LiveGateway struct {
	logger *zap.Logger
	submit func(ctx context.Context, req types.OrderRequest) (types.OrderAck, error)

	mu     sync.Mutex
	orders map[string]types.OrderStatusInfo
}

// NewLiveGateway constructs a gateway that places orders via submit and
// tracks their lifecycle from postback events applied through ApplyPostback
// or the websocket loopback handler.
func NewLiveGateway(logger *zap.Logger, submit func(ctx context.Context, req types.OrderRequest) (types.OrderAck, error)) *LiveGateway {
	return &LiveGateway{
		logger: logger,
		submit: submit,
		orders: make(map[string]types.OrderStatusInfo),
	}
}

// PlaceOrder submits the order and records it as pending until a postback
// arrives.
func (g *LiveGateway) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	ack, err := g.submit(ctx, req)
	if err != nil {
		return types.OrderAck{}, err
	}
	g.mu.Lock()
	g.orders[ack.OrderID] = types.OrderStatusInfo{Status: types.OrderStatusPending, Quantity: req.Quantity}
	g.mu.Unlock()
	return ack, nil
}

// OrderStatus returns whatever the last postback set for this order,
// defaulting to "pending" if no postback has arrived yet.
func (g *LiveGateway) OrderStatus(_ context.Context, orderID string) (types.OrderStatusInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, ok := g.orders[orderID]
	if !ok {
		return types.OrderStatusInfo{}, ErrOrderNotFound
	}
	return info, nil
}

// CancelOrder marks a still-pending order cancelled locally; the broker's
// own cancel acknowledgement still arrives as a postback.
func (g *LiveGateway) CancelOrder(_ context.Context, orderID string) (types.CancelResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, ok := g.orders[orderID]
	if !ok {
		return types.CancelResult{Success: false, Reason: "order not found"}, nil
	}
	if info.Status.IsTerminal() {
		return types.CancelResult{Success: false, Reason: "order already terminal"}, nil
	}
	info.Status = types.OrderStatusCancelled
	g.orders[orderID] = info
	return types.CancelResult{Success: true}, nil
}

// ApplyPostback updates an order's tracked state from a pushed event. Test
// fixtures call this directly; the websocket loopback handler calls it for
// every decoded message it receives.
func (g *LiveGateway) ApplyPostback(ev PostbackEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info := g.orders[ev.OrderID]
	info.Status = ev.Status
	info.FilledQuantity = decimal.NewFromFloat(ev.FilledQuantity)
	info.AveragePrice = decimal.NewFromFloat(ev.AveragePrice)
	info.RejectionReason = ev.RejectionReason
	g.orders[ev.OrderID] = info
}

var postbackUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PostbackHandler upgrades to a websocket and applies every decoded
// PostbackEvent it receives to g, until the connection closes. Used by the
// loopback fixture that stands in for a real broker's postback webhook.
func (g *LiveGateway) PostbackHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := postbackUpgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("postback upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var ev PostbackEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		g.ApplyPostback(ev)
	}
}
