// Package ordersaga is the one concrete model this service ships with:
// an order-fulfillment saga (reserve stock, charge payment, send a
// notification) built with pkg/builder over an in-memory inventory and
// ledger, grounded on the teacher's examples/stock-reservation,
// examples/payment-processor, and examples/notification-sender demo
// workers (same domain, same compensating-action shape), collapsed from
// three independently deployed HTTP step workers into the three actions
// of one in-process saga.Definition this library's StepHandler contract
// expects.
package ordersaga

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kode4food/txsaga/pkg/builder"
	"github.com/kode4food/txsaga/pkg/saga"
)

// ModelID is the registry key this demo model is bound to.
const ModelID saga.ModelID = "order-fulfillment"

// Order is the transaction input body a caller supplies to
// BeginTransaction for the order-fulfillment model.
type Order struct {
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Amount    float64 `json:"amount"`
}

// Reservation is reserve-stock's saved response, forwarded to
// charge-payment as `_response` (ForwardResponse).
type Reservation struct {
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	ReservedAt    int64  `json:"reserved_at"`
}

// PaymentResult is charge-payment's saved response, forwarded to
// send-notification as `_response`.
type PaymentResult struct {
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	ChargedAt int64   `json:"charged_at"`
}

// Notification is send-notification's response; the step carries
// NoCompensation since a sent notification cannot be unsent.
type Notification struct {
	NotificationID string `json:"notification_id"`
	SentAt         int64  `json:"sent_at"`
}

// Inventory is an in-memory stock ledger, standing in for the teacher's
// demo's shared map+mutex (stockLevels/reservations) — not a durable
// store; a real deployment would swap this for a database-backed one
// behind the same four methods.
type Inventory struct {
	mu    sync.Mutex
	stock map[string]int

	// reservations and payments record committed side effects keyed by
	// transaction id, so the compensate phase (which receives the same
	// TransactionPayload body as invoke, not the step's own prior
	// response — see internal/orchestrator/execute.go buildPayload) can
	// find what to reverse without it being replayed through the wire.
	reservations map[saga.TransactionID]Reservation
	payments     map[saga.TransactionID]PaymentResult
}

// NewInventory seeds stock levels for demo product ids, mirroring the
// teacher's stockLevels fixture.
func NewInventory() *Inventory {
	return &Inventory{
		stock: map[string]int{
			"prod-laptop":     50,
			"prod-mouse":      200,
			"prod-keyboard":   75,
			"prod-monitor":    30,
			"prod-headphones": 0,
		},
		reservations: map[saga.TransactionID]Reservation{},
		payments:     map[saga.TransactionID]PaymentResult{},
	}
}

var errInsufficientStock = fmt.Errorf("insufficient stock")

// Reserve decrements productID's stock by quantity and records the
// reservation under tx, or returns errInsufficientStock (transient:
// stock may free up on retry) if there isn't enough, or a permanent
// error if productID is unknown.
func (inv *Inventory) Reserve(tx saga.TransactionID, productID string, quantity int, now int64) (Reservation, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	level, ok := inv.stock[productID]
	if !ok {
		return Reservation{}, saga.PermanentFailure(fmt.Errorf("unknown product %q", productID))
	}
	if level < quantity {
		return Reservation{}, errInsufficientStock
	}
	inv.stock[productID] = level - quantity
	res := Reservation{
		ReservationID: string(tx) + ":" + productID,
		ProductID:     productID,
		Quantity:      quantity,
		ReservedAt:    now,
	}
	inv.reservations[tx] = res
	return res, nil
}

// Release returns tx's reserved quantity to stock, if any was recorded;
// a no-op if reserve-stock never committed (so compensation is safe to
// call on a flow that never got that far).
func (inv *Inventory) Release(tx saga.TransactionID) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	res, ok := inv.reservations[tx]
	if !ok {
		return
	}
	inv.stock[res.ProductID] += res.Quantity
	delete(inv.reservations, tx)
}

// Charge records a payment for tx, or returns a permanent failure for a
// non-positive amount (never retryable: the order itself is invalid).
func (inv *Inventory) Charge(tx saga.TransactionID, amount float64, now int64) (PaymentResult, error) {
	if amount <= 0 {
		return PaymentResult{}, saga.PermanentFailure(fmt.Errorf("invalid charge amount %v", amount))
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	res := PaymentResult{
		PaymentID: string(tx) + ":payment",
		Amount:    amount,
		ChargedAt: now,
	}
	inv.payments[tx] = res
	return res, nil
}

// Refund reverses tx's payment, if one was recorded.
func (inv *Inventory) Refund(tx saga.TransactionID) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.payments, tx)
}

// Build assembles the order-fulfillment saga.Definition and StepHandler
// over inv: reserve-stock -> charge-payment -> send-notification, each
// forwarding its response to the next via ForwardResponse, with
// reserve-stock and charge-payment compensating (release/refund) and
// send-notification exempted via NoCompensation (a sent notification
// can't be recalled).
func Build(inv *Inventory, now func() int64) (*saga.Definition, saga.StepHandler) {
	reserve := builder.NewStep("reserve-stock").
		WithMaxRetries(3).
		WithRetryInterval(2).
		ForwardResponse().
		WithHandler(reserveHandler(inv, now)).
		Then(
			builder.NewStep("charge-payment").
				WithMaxRetries(2).
				ForwardResponse().
				WithHandler(chargeHandler(inv, now)).
				Then(
					builder.NewStep("send-notification").
						NoCompensation().
						WithHandler(notifyHandler(now)),
				),
		)

	def, handler, _ := builder.NewFlow(ModelID).WithSteps(reserve).Build()
	return def, handler
}

func reserveHandler(inv *Inventory, now func() int64) saga.StepHandler {
	return func(ctx context.Context, action saga.ActionName, phase saga.Phase, payload saga.TransactionPayload) (saga.StepResult, error) {
		var order Order
		if err := json.Unmarshal(payload.Body, &order); err != nil {
			return saga.StepResult{}, saga.PermanentFailure(err)
		}

		if phase == saga.PhaseCompensate {
			inv.Release(payload.Metadata.TransactionID)
			return saga.StepResult{}, nil
		}

		res, err := inv.Reserve(payload.Metadata.TransactionID, order.ProductID, order.Quantity, now())
		if err != nil {
			return saga.StepResult{}, err
		}
		body, err := json.Marshal(res)
		if err != nil {
			return saga.StepResult{}, saga.PermanentFailure(err)
		}
		return saga.StepResult{Response: body}, nil
	}
}

func chargeHandler(inv *Inventory, now func() int64) saga.StepHandler {
	return func(ctx context.Context, action saga.ActionName, phase saga.Phase, payload saga.TransactionPayload) (saga.StepResult, error) {
		if phase == saga.PhaseCompensate {
			inv.Refund(payload.Metadata.TransactionID)
			return saga.StepResult{}, nil
		}

		var order Order
		if err := json.Unmarshal(payload.Body, &order); err != nil {
			return saga.StepResult{}, saga.PermanentFailure(err)
		}
		res, err := inv.Charge(payload.Metadata.TransactionID, order.Amount, now())
		if err != nil {
			return saga.StepResult{}, err
		}
		body, err := json.Marshal(res)
		if err != nil {
			return saga.StepResult{}, saga.PermanentFailure(err)
		}
		return saga.StepResult{Response: body}, nil
	}
}

func notifyHandler(now func() int64) saga.StepHandler {
	return func(ctx context.Context, action saga.ActionName, phase saga.Phase, payload saga.TransactionPayload) (saga.StepResult, error) {
		n := Notification{
			NotificationID: string(payload.Metadata.TransactionID) + ":notify",
			SentAt:         now(),
		}
		body, err := json.Marshal(n)
		if err != nil {
			return saga.StepResult{}, saga.PermanentFailure(err)
		}
		return saga.StepResult{Response: body}, nil
	}
}

// Now is the default clock Build's handlers use when the caller doesn't
// need deterministic timestamps (tests substitute their own).
func Now() int64 { return time.Now().UnixMilli() }
