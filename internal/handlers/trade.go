package handlers

import (
	"net/http"

	"github.com/atharvakonge/paper-trader/internal/ledger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type tradeRequest struct {
	Symbol input `form:"symbol" json:"symbol"`
	Shares input `form:"shares" json:"shares"`
}

type quoteRequest struct {
	Symbol input `form:"symbol" json:"symbol"`
}

type depositRequest struct {
	Deposit input `form:"deposit" json:"deposit"`
}

type holdingRow struct {
	models.Holding
	PriceUSD string `json:"price_usd"`
	TotalUSD string `json:"total_usd"`
}

type portfolioResponse struct {
	Holdings []holdingRow     `json:"holdings"`
	Cash     decimal.Decimal `json:"cash"`
	CashUSD  string          `json:"cash_usd"`
	Total    decimal.Decimal `json:"total"`
	TotalUSD string          `json:"total_usd"`
}

type receiptResponse struct {
	Message     string              `json:"message"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Cash        decimal.Decimal     `json:"cash"`
	CashUSD     string              `json:"cash_usd"`
}

func newReceiptResponse(msg string, r *ledger.Receipt) receiptResponse {
	return receiptResponse{Message: msg, Transaction: r.Transaction, Cash: r.Cash, CashUSD: models.USD(r.Cash)}
}

// unavailable is shown in place of a price that could not be fetched.
const unavailable = "N/A"

// Portfolio handles GET /api/portfolio
func (h *Handler) Portfolio(c *gin.Context) {
	p, err := h.ledger.Portfolio(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := portfolioResponse{
		Holdings: make([]holdingRow, 0, len(p.Holdings)),
		Cash:     p.Cash,
		CashUSD:  models.USD(p.Cash),
		Total:    p.Total,
		TotalUSD: models.USD(p.Total),
	}
	for _, hold := range p.Holdings {
		row := holdingRow{Holding: hold, PriceUSD: unavailable, TotalUSD: unavailable}
		if hold.Price != nil {
			row.PriceUSD = models.USD(*hold.Price)
			row.TotalUSD = models.USD(*hold.Value)
		}
		resp.Holdings = append(resp.Holdings, row)
	}
	c.JSON(http.StatusOK, resp)
}

// Quote handles POST /api/quote
func (h *Handler) Quote(c *gin.Context) {
	var req quoteRequest
	if !h.bind(c, &req) {
		return
	}

	q, err := h.ledger.Quote(c.Request.Context(), req.Symbol.String())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    q.Symbol,
		"name":      q.Name,
		"price":     q.Price,
		"price_usd": models.USD(q.Price),
	})
}

// Buy handles POST /api/buy
func (h *Handler) Buy(c *gin.Context) {
	var req tradeRequest
	if !h.bind(c, &req) {
		return
	}

	r, err := h.trades.Buy(c.Request.Context(), currentUserID(c), req.Symbol.String(), req.Shares.String())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newReceiptResponse("Bought!", r))
}

// SellableSymbols handles GET /api/sell
func (h *Handler) SellableSymbols(c *gin.Context) {
	symbols, err := h.ledger.SellableSymbols(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

// Sell handles POST /api/sell
func (h *Handler) Sell(c *gin.Context) {
	var req tradeRequest
	if !h.bind(c, &req) {
		return
	}

	r, err := h.trades.Sell(c.Request.Context(), currentUserID(c), req.Symbol.String(), req.Shares.String())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newReceiptResponse("Sold!", r))
}

// Deposit handles POST /api/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req depositRequest
	if !h.bind(c, &req) {
		return
	}

	r, err := h.trades.Deposit(c.Request.Context(), currentUserID(c), req.Deposit.String())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newReceiptResponse("Deposited!", r))
}

// History handles GET /api/history
func (h *Handler) History(c *gin.Context) {
	txns, err := h.ledger.History(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// Reconcile handles GET /api/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	r, err := h.ledger.Reconcile(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": r, "balanced": r.Balanced()})
}
