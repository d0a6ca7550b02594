package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/edgebank/assist/internal/classifier"
	feecalcdomain "github.com/edgebank/assist/internal/feecalc/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	"github.com/gin-gonic/gin"
)

type calculateFeeRequest struct {
	AsOfDate      string   `json:"as_of_date"`
	ProductLine   string   `json:"product_line"`
	ChargeType    string   `json:"charge_type"`
	CardCategory  string   `json:"card_category"`
	CardNetwork   string   `json:"card_network"`
	CardProduct   string   `json:"card_product"`
	LoanProduct   string   `json:"loan_product"`
	ChargeContext string   `json:"charge_context"`
	Amount        *float64 `json:"amount"`
	Currency      string   `json:"currency"`
	UsageIndex    *int     `json:"usage_index"`
}

// CalculateFee resolves a structured fee query.
func (s *Server) CalculateFee(c *gin.Context) {
	var req calculateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	if strings.TrimSpace(req.ChargeType) == "" {
		AbortWithError(c, newValidationError("charge_type", "invalid_request", "charge_type is required"))
		return
	}

	resolveReq, err := req.toResolveRequest()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.feeSvc.Resolve(c.Request.Context(), resolveReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r calculateFeeRequest) toResolveRequest() (feecalcdomain.ResolveRequest, error) {
	out := feecalcdomain.ResolveRequest{
		Discriminators: feeruledomain.Discriminators{
			ChargeType:    strings.TrimSpace(r.ChargeType),
			CardCategory:  strings.TrimSpace(r.CardCategory),
			CardNetwork:   strings.TrimSpace(r.CardNetwork),
			CardProduct:   strings.TrimSpace(r.CardProduct),
			LoanProduct:   strings.TrimSpace(r.LoanProduct),
			ChargeContext: strings.TrimSpace(r.ChargeContext),
		},
		Amount:     r.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(r.Currency)),
		UsageIndex: r.UsageIndex,
	}

	if line := strings.TrimSpace(r.ProductLine); line != "" {
		out.ProductLine = feeruledomain.ProductLine(line)
		if !out.ProductLine.Valid() {
			return out, feeruledomain.ErrInvalidProductLine
		}
	} else if out.Discriminators.LoanProduct != "" {
		out.ProductLine = feeruledomain.ProductLineRetailAsset
	} else {
		out.ProductLine = feeruledomain.ProductLineCreditCard
	}

	if asOf := strings.TrimSpace(r.AsOfDate); asOf != "" {
		parsed, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return out, newValidationError("as_of_date", "invalid_date", "as_of_date must be YYYY-MM-DD")
		}
		out.AsOf = parsed
	}
	return out, nil
}

type queryFeeRequest struct {
	Query    string   `json:"query"`
	Token    string   `json:"token"`
	Choice   string   `json:"choice"`
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

// QueryFee resolves a free-text fee question. With a token it consumes a
// pending disambiguation instead.
func (s *Server) QueryFee(c *gin.Context) {
	var req queryFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	entities := classifier.ExtractEntities(strings.ToLower(strings.TrimSpace(req.Query)))
	amount := req.Amount
	if amount == nil {
		amount = entities.Amount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = entities.Currency
	}

	resolveReq := feecalcdomain.ResolveRequest{
		Amount:   amount,
		Currency: currency,
	}

	if token := strings.TrimSpace(req.Token); token != "" {
		choice := strings.TrimSpace(req.Choice)
		if choice == "" {
			choice = strings.TrimSpace(req.Query)
		}
		result, err := s.feeSvc.ResolveToken(c.Request.Context(), token, choice, resolveReq)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		AbortWithError(c, newValidationError("query", "empty_query", "query is required"))
		return
	}
	if entities.ChargeType == "" {
		AbortWithError(c, newValidationError("query", "invalid_request", "could not recognize a charge type in the query"))
		return
	}

	resolveReq.Discriminators = feeruledomain.Discriminators{
		ChargeType:    entities.ChargeType,
		CardCategory:  entities.CardCategory,
		CardNetwork:   entities.CardNetwork,
		CardProduct:   entities.CardProduct,
		LoanProduct:   entities.LoanProduct,
		ChargeContext: entities.ChargeContext,
	}
	if entities.LoanProduct != "" {
		resolveReq.ProductLine = feeruledomain.ProductLineRetailAsset
	} else {
		resolveReq.ProductLine = feeruledomain.ProductLineCreditCard
	}

	result, err := s.feeSvc.Resolve(c.Request.Context(), resolveReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListFeeRules is the admin read over the rule store.
func (s *Server) ListFeeRules(c *gin.Context) {
	resp, err := s.feeRuleSvc.List(c.Request.Context(), feeruledomain.ListRulesRequest{
		ProductLine: c.Query("product_line"),
		ChargeType:  c.Query("charge_type"),
		Status:      c.Query("status"),
		AsOf:        c.Query("as_of"),
		PageToken:   c.Query("page_token"),
		PageSize:    parseIntDefault(c.Query("page_size"), 10),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
