package restapi

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"time"

	"balance_pool/internal/app/port"
	"balance_pool/internal/app/service/balancepool"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/infrastructure/pricing"
	"balance_pool/internal/pkg/utils"

	"github.com/gin-gonic/gin"
)

const streamHeartbeat = 30 * time.Second

// BalancePool is the part of the balance pool the API serves.
type BalancePool interface {
	Snapshot() balancepool.Update
	Subscribe(onUpdate func(balancepool.Update)) (unsubscribe func())
	GetBalance(ctx context.Context, network entity.NetworkRef, tokenID, address string) (entity.BalanceRecord, error)
}

// ChainDataSource gives the handlers token metadata for formatting.
type ChainDataSource interface {
	ChainData() (entity.ChainData, bool)
}

// APIBalance is one balance record as returned by the API.
type APIBalance struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Network      string `json:"network"`
	TokenID      string `json:"token_id"`
	Symbol       string `json:"symbol,omitempty"`
	Address      string `json:"address"`
	Status       string `json:"status"`
	Free         string `json:"free"`
	Reserved     string `json:"reserved"`
	Frozen       string `json:"frozen"`
	Total        string `json:"total"`
	Transferable string `json:"transferable"`
	// Formatted is the total in whole token units.
	Formatted string `json:"formatted,omitempty"`
}

// APIBalancesResponse is the body of GET /balances and of every stream event.
type APIBalancesResponse struct {
	Status   string             `json:"status"`
	Balances []APIBalance       `json:"balances"`
	Sum      *entity.BalanceSum `json:"sum,omitempty"`
}

// APIErrorResponse is returned with every non-2xx status.
type APIErrorResponse struct {
	Error string `json:"error"`
}

// BalanceHandler serves the balance endpoints.
type BalanceHandler struct {
	pool   BalancePool
	chains ChainDataSource
	rates  port.RateProvider // optional
	logger port.Logger
}

// NewBalanceHandler creates a new BalanceHandler. rates may be nil.
func NewBalanceHandler(pool BalancePool, chains ChainDataSource, rates port.RateProvider, logger port.Logger) *BalanceHandler {
	return &BalanceHandler{
		pool:   pool,
		chains: chains,
		rates:  rates,
		logger: logger,
	}
}

type balanceFilter struct {
	Address string `form:"address"`
	Token   string `form:"token"`
	Network string `form:"network"`
	Source  string `form:"source"`
	Status  string `form:"status"`
}

func (f balanceFilter) predicate() (func(entity.BalanceRecord) bool, error) {
	var network entity.NetworkRef
	if f.Network != "" {
		ref, err := entity.ParseNetworkRef(f.Network)
		if err != nil {
			return nil, err
		}
		network = ref
	}
	address := entity.NormalizeAddress(f.Address)
	return func(r entity.BalanceRecord) bool {
		switch {
		case address != "" && entity.NormalizeAddress(r.Address) != address:
			return false
		case f.Token != "" && r.TokenID != f.Token:
			return false
		case !network.IsZero() && r.Network != network:
			return false
		case f.Source != "" && r.Source != f.Source:
			return false
		case f.Status != "" && string(r.Status) != f.Status:
			return false
		}
		return true
	}, nil
}

// GetBalancesHandler returns the last published balances, filtered by query.
func (h *BalanceHandler) GetBalancesHandler(c *gin.Context) {
	var filter balanceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: err.Error()})
		return
	}
	pred, err := filter.predicate()
	if err != nil {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: err.Error()})
		return
	}

	update := h.pool.Snapshot()
	c.JSON(http.StatusOK, h.response(c.Request.Context(), update.Status, update.Balances.Filter(pred)))
}

// LookupBalanceHandler returns one balance, fetching it when it is not watched.
func (h *BalanceHandler) LookupBalanceHandler(c *gin.Context) {
	tokenID := c.Query("token")
	address := c.Query("address")
	if tokenID == "" || address == "" {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "token and address are required"})
		return
	}
	var network entity.NetworkRef
	if raw := c.Query("network"); raw != "" {
		ref, err := entity.ParseNetworkRef(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, APIErrorResponse{Error: err.Error()})
			return
		}
		network = ref
	}

	record, err := h.pool.GetBalance(c.Request.Context(), network, tokenID, address)
	switch {
	case errors.Is(err, balancepool.ErrUnknownToken):
		c.JSON(http.StatusNotFound, APIErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, balancepool.ErrNoModule):
		c.JSON(http.StatusUnprocessableEntity, APIErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, balancepool.ErrPoolClosed):
		c.JSON(http.StatusServiceUnavailable, APIErrorResponse{Error: err.Error()})
		return
	case err != nil:
		h.logger.Warn("Balance lookup failed", "token", tokenID, "address", address, "error", err)
		c.JSON(http.StatusBadGateway, APIErrorResponse{Error: err.Error()})
		return
	}

	tokens := h.tokens()
	c.JSON(http.StatusOK, toAPIBalance(record, tokens[record.TokenID]))
}

// StreamBalancesHandler attaches a pool consumer for the life of the request
// and sends every publish as a server-sent event.
func (h *BalanceHandler) StreamBalancesHandler(c *gin.Context) {
	var filter balanceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: err.Error()})
		return
	}
	pred, err := filter.predicate()
	if err != nil {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: err.Error()})
		return
	}

	updates := make(chan balancepool.Update, 1)
	unsubscribe := h.pool.Subscribe(func(u balancepool.Update) {
		select {
		case <-updates:
		default:
		}
		updates <- u
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		case u := <-updates:
			c.SSEvent("balances", h.response(ctx, u.Status, u.Balances.Filter(pred)))
			return true
		}
	})
}

// HealthHandler reports liveness.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *BalanceHandler) tokens() map[string]entity.Token {
	if h.chains == nil {
		return nil
	}
	data, ok := h.chains.ChainData()
	if !ok {
		return nil
	}
	return data.Tokens
}

func (h *BalanceHandler) response(ctx context.Context, status balancepool.Status, balances entity.Balances) APIBalancesResponse {
	tokens := h.tokens()
	resp := APIBalancesResponse{
		Status:   string(status),
		Balances: make([]APIBalance, 0, balances.Len()),
	}
	seen := make(map[string]struct{})
	var priced []entity.Token
	for _, r := range balances.Records() {
		token := tokens[r.TokenID]
		resp.Balances = append(resp.Balances, toAPIBalance(r, token))
		if _, ok := seen[r.TokenID]; !ok && token.ID != "" {
			seen[r.TokenID] = struct{}{}
			priced = append(priced, token)
		}
	}

	if h.rates != nil && len(priced) > 0 {
		sum := balances.Sum(pricing.CurrencyUSD, h.rates.Rates(ctx, priced))
		resp.Sum = &sum
	}
	return resp
}

func toAPIBalance(r entity.BalanceRecord, token entity.Token) APIBalance {
	total := r.Amounts.Total()
	b := APIBalance{
		ID:           r.ID(),
		Source:       r.Source,
		Network:      r.Network.String(),
		TokenID:      r.TokenID,
		Symbol:       token.Symbol,
		Address:      r.Address,
		Status:       string(r.Status),
		Free:         intString(r.Amounts.Free),
		Reserved:     intString(r.Amounts.Reserved),
		Frozen:       intString(r.Amounts.Frozen),
		Total:        total.String(),
		Transferable: r.Amounts.Transferable().String(),
	}
	if token.ID != "" {
		b.Formatted = utils.FormatBigInt(total, token.Decimals)
	}
	return b
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
