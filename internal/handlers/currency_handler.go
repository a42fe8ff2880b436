package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plancast/internal/errors"
	"plancast/internal/services"
)

// CurrencyHandler handles currency and exchange-rate requests.
type CurrencyHandler struct {
	currencyService services.CurrencyServicer
	auditService    services.AuditServicer
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(currencyService services.CurrencyServicer, auditService services.AuditServicer) *CurrencyHandler {
	return &CurrencyHandler{currencyService: currencyService, auditService: auditService}
}

// ListCurrencies handles the retrieval of all supported currencies
// @Summary     List currencies
// @Description Get all supported currencies with their minor-unit counts
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "Currencies"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies [get]
func (h *CurrencyHandler) ListCurrencies(c *gin.Context) {
	currencies, err := h.currencyService.ListCurrencies()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currencies": currencies})
}

// GetCurrency handles the retrieval of a single currency
// @Summary     Get currency
// @Description Get a currency by its ISO 4217 code
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Param       code path string true "Currency code"
// @Success     200 {object} map[string]interface{} "Currency"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Currency not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/{code} [get]
func (h *CurrencyHandler) GetCurrency(c *gin.Context) {
	currency, err := h.currencyService.GetCurrency(c.Param("code"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": currency})
}

// ConvertRequest represents the request payload for a currency conversion
type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	From   string          `json:"from" binding:"required,iso4217"`
	To     string          `json:"to" binding:"required,iso4217"`
	AsOf   *string         `json:"as_of"`
}

// Convert handles an on-demand currency conversion
// @Summary     Convert an amount
// @Description Convert an amount between currencies using the most recent rate effective on or before the given date
// @Tags        currencies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ConvertRequest true "Conversion details"
// @Success     200 {object} map[string]interface{} "Converted amount"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Currency or rate not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/convert [post]
func (h *CurrencyHandler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != nil && *req.AsOf != "" {
		parsed, parseErr := parseFlexibleTime(*req.AsOf)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid as_of format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}

	converted, err := h.currencyService.Convert(req.Amount, req.From, req.To, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":    req.Amount,
		"from":      req.From,
		"to":        req.To,
		"as_of":     asOf,
		"converted": converted,
	})
}

// GetExchangeRate handles the lookup of an effective exchange rate
// @Summary     Get exchange rate
// @Description Get the rate effective on or before a date for a currency pair
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Param       from  query string true  "Source currency code"
// @Param       to    query string true  "Target currency code"
// @Param       as_of query string false "Effective date (RFC3339 or YYYY-MM-DD, default now)"
// @Success     200 {object} map[string]interface{} "Exchange rate"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Rate not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/rates [get]
func (h *CurrencyHandler) GetExchangeRate(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from and to query parameters are required"))
		return
	}

	asOf := time.Now().UTC()
	if v := c.Query("as_of"); v != "" {
		parsed, parseErr := parseFlexibleTime(v)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid as_of format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}

	rate, err := h.currencyService.GetExchangeRate(from, to, asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate": rate})
}

// CreateExchangeRateRequest represents the request payload for recording a rate
type CreateExchangeRateRequest struct {
	From          string          `json:"from" binding:"required,iso4217"`
	To            string          `json:"to" binding:"required,iso4217"`
	Rate          decimal.Decimal `json:"rate" binding:"required"`
	EffectiveDate string          `json:"effective_date" binding:"required"`
}

// CreateExchangeRate handles recording a new effective-dated exchange rate
// @Summary     Record an exchange rate
// @Description Append a new effective-dated rate for a currency pair; existing rates are never modified
// @Tags        currencies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateExchangeRateRequest true "Rate details"
// @Success     201 {object} map[string]interface{} "Rate recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Currency not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/rates [post]
func (h *CurrencyHandler) CreateExchangeRate(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	effectiveDate, err := parseFlexibleTime(req.EffectiveDate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid effective_date format, use RFC3339 or YYYY-MM-DD"))
		return
	}

	rate, err := h.currencyService.CreateExchangeRate(actor, req.From, req.To, req.Rate, effectiveDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "CREATE_EXCHANGE_RATE", "exchange_rate", rate.ID, c.ClientIP(),
		map[string]interface{}{"from": req.From, "to": req.To, "rate": req.Rate.String()})

	c.JSON(http.StatusCreated, gin.H{"rate": rate})
}
