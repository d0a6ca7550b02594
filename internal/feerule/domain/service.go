package domain

import (
	"context"

	"github.com/edgebank/assist/pkg/db/pagination"
)

type ListRulesRequest struct {
	ProductLine string
	ChargeType  string
	Status      string
	AsOf        string
	PageToken   string
	PageSize    int
}

type ListRulesResponse struct {
	pagination.PageInfo
	Rules []*FeeRule `json:"rules"`
}

type Service interface {
	List(ctx context.Context, req ListRulesRequest) (ListRulesResponse, error)
}
