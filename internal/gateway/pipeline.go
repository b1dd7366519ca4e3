// Package gateway implements the pay-per-query request pipeline: price the
// call, mint a 402 challenge, verify presented receipts, consume the
// invoice, and proxy the RPC upstream.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"solgate/internal/invoice"
	"solgate/internal/jsonrpc"
	"solgate/internal/metrics"
	"solgate/internal/payment"
	"solgate/internal/pricing"
	"solgate/internal/proxy"
	"solgate/internal/settlement"
	"solgate/internal/verify"
)

// Error codes on the wire.
const (
	CodePaymentRequired    = "payment_required"
	CodeInvalidHeader      = "invalid_payment_header"
	CodeInvalidPayload     = "invalid_payment_payload"
	CodeInvalidPaymentID   = "invalid_payment_id"
	CodePaymentAlreadyUsed = "payment_already_used"
	CodePaymentInvalid     = "payment_invalid"
	CodeStoreUnavailable   = "store_unavailable"
	CodeInternalError      = "internal_error"
)

// paymentScheme is the only x402 scheme the gateway offers.
const paymentScheme = "exact"

// Config carries the billing identity the pipeline stamps onto challenges.
type Config struct {
	WalletAddress  string
	Mint           string
	ChainTag       string
	TokenSymbol    string
	PreferCheapest bool
}

// Accept is one entry of the 402 challenge's accepts array.
type Accept struct {
	Asset          string `json:"asset"`
	Chain          string `json:"chain"`
	Amount         string `json:"amount"`
	PaymentAddress string `json:"paymentAddress"`
	PaymentID      string `json:"paymentId"`
	Scheme         string `json:"scheme"`
	Method         string `json:"method"`
}

// ChallengeBody is the 402 response payload.
type ChallengeBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Accepts []Accept `json:"accepts"`
}

// Pipeline owns every collaborator of the billing flow. One instance per
// process, assembled at boot; nothing here is package-level state.
type Pipeline struct {
	cfg       Config
	pricing   *pricing.Policy
	store     invoice.Store
	verifier  *verify.Verifier
	forwarder *proxy.Forwarder
	notifier  *settlement.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New assembles a pipeline. metrics may be nil.
func New(cfg Config, policy *pricing.Policy, store invoice.Store, verifier *verify.Verifier,
	forwarder *proxy.Forwarder, notifier *settlement.Notifier, m *metrics.Metrics,
	logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{
		cfg:       cfg,
		pricing:   policy,
		store:     store,
		verifier:  verifier,
		forwarder: forwarder,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
	}
}

// RegisterRoutes mounts the billing endpoint.
func (p *Pipeline) RegisterRoutes(app *fiber.App) {
	app.Post("/", p.Handle)
	app.Post("/rpc", p.Handle)
}

// Handle runs one request through the pipeline.
func (p *Pipeline) Handle(c fiber.Ctx) error {
	req, err := jsonrpc.Parse(c.Body())
	if err != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusBadRequest).
			Send(jsonrpc.MarshalErrorResponse(nil, jsonrpc.CodeInvalidRequest, err.Error()))
	}

	header := c.Get(payment.RequestHeader)
	if header == "" {
		return p.challenge(c, req, fmt.Sprintf("Payment required for %s", req.Method))
	}

	receipt, err := payment.DecodeReceipt(header)
	if err != nil {
		return p.reject(c, receiptErrorCode(err), err.Error())
	}

	ctx := c.Context()
	inv, err := p.store.Get(ctx, receipt.PaymentID)
	if err != nil {
		return p.storeUnavailable(c, err)
	}
	if inv == nil {
		// Expired or never existed; hand out a fresh challenge so the
		// caller can redo the flow.
		return p.challenge(c, req, "Payment ID not found or expired")
	}
	if inv.Used {
		return p.reject(c, CodePaymentAlreadyUsed, "Payment has already been used")
	}

	result := p.verifier.Verify(ctx, verify.Request{
		TxSignature:    receipt.TxSignature,
		PaymentID:      receipt.PaymentID,
		ExpectedAmount: inv.Amount,
		Mint:           inv.Mint,
		Recipient:      inv.Recipient,
	})
	if !result.Valid {
		p.metrics.PaymentsRejected.WithLabelValues(CodePaymentInvalid).Inc()
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   CodePaymentInvalid,
			"message": "Payment verification failed",
			"details": result.Reason,
		})
	}

	alreadyUsed, err := p.store.MarkUsed(ctx, receipt.PaymentID)
	if err != nil {
		// The caller has paid and we could not consume the invoice.
		// Served nothing; operators reconcile from this log line.
		p.logger.Error("failed to mark payment used after successful verification",
			"paymentId", receipt.PaymentID, "txSignature", receipt.TxSignature, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   CodeInternalError,
			"message": "Failed to record payment",
		})
	}
	if alreadyUsed {
		// Lost the race against a concurrent request with the same receipt.
		return p.reject(c, CodePaymentAlreadyUsed, "Payment has already been used")
	}
	p.metrics.PaymentsAccepted.Inc()

	settled := make(chan bool, 1)
	go func() {
		settled <- p.notifier.Settle(ctx, receipt.TxSignature, receipt.PaymentID)
	}()

	resp := p.forwarder.Forward(ctx, req, c.Body())
	if resp.ProviderID == "" {
		p.metrics.UpstreamFailovers.Inc()
	} else {
		p.metrics.UpstreamRequests.WithLabelValues(resp.ProviderID).Inc()
	}

	isSettled := <-settled
	if isSettled {
		p.metrics.SettlementResults.WithLabelValues("settled").Inc()
	} else {
		p.metrics.SettlementResults.WithLabelValues("unsettled").Inc()
	}

	settlementReceipt := payment.SettlementReceipt{
		TxSignature: receipt.TxSignature,
		PaymentID:   receipt.PaymentID,
		Settled:     isSettled,
	}
	c.Set(payment.ResponseHeader, settlementReceipt.Encode())
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(resp.Body)
}

// challenge mints an invoice and answers 402 with the payment terms.
func (p *Pipeline) challenge(c fiber.Ctx, req *jsonrpc.Request, message string) error {
	inv := &invoice.Invoice{
		PaymentID: uuid.New().String(),
		Amount:    p.pricing.Price(req.Method, req.Params),
		Mint:      p.cfg.Mint,
		Recipient: p.cfg.WalletAddress,
		Method:    req.Method,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.Create(c.Context(), inv); err != nil {
		return p.storeUnavailable(c, err)
	}
	p.metrics.ChallengesIssued.Inc()

	return c.Status(fiber.StatusPaymentRequired).JSON(ChallengeBody{
		Error:   CodePaymentRequired,
		Message: message,
		Accepts: []Accept{{
			Asset:          p.cfg.TokenSymbol,
			Chain:          p.cfg.ChainTag,
			Amount:         inv.Amount.Decimal(),
			PaymentAddress: p.cfg.WalletAddress,
			PaymentID:      inv.PaymentID,
			Scheme:         paymentScheme,
			Method:         req.Method,
		}},
	})
}

func (p *Pipeline) reject(c fiber.Ctx, code, message string) error {
	p.metrics.PaymentsRejected.WithLabelValues(code).Inc()
	return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

func (p *Pipeline) storeUnavailable(c fiber.Ctx, err error) error {
	p.logger.Error("invoice store unavailable", "error", err)
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   CodeStoreUnavailable,
		"message": "Invoice store is unavailable",
	})
}

func receiptErrorCode(err error) string {
	switch {
	case errors.Is(err, payment.ErrMalformedHeader):
		return CodeInvalidHeader
	case errors.Is(err, payment.ErrInvalidPaymentID):
		return CodeInvalidPaymentID
	default:
		return CodeInvalidPayload
	}
}
