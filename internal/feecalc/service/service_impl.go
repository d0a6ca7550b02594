package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/clock"
	"github.com/edgebank/assist/internal/config"
	"github.com/edgebank/assist/internal/disambig"
	"github.com/edgebank/assist/internal/feecalc/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	obsmetrics "github.com/edgebank/assist/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Rules     feeruledomain.Repository
	Disambig  *disambig.Store
	Assistant *config.AssistantConfigHolder
	Clock     clock.Clock
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	rules     feeruledomain.Repository
	disambig  *disambig.Store
	assistant *config.AssistantConfigHolder
	clock     clock.Clock
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("feecalc.service"),
		rules:     p.Rules,
		disambig:  p.Disambig,
		assistant: p.Assistant,
		clock:     p.Clock,
		metrics:   p.Metrics,
	}
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.FeeResult, error) {
	if err := validate(req); err != nil {
		return domain.FeeResult{}, err
	}
	if req.AsOf.IsZero() {
		req.AsOf = s.clock.Now()
	}

	result, err := s.resolveOnce(ctx, req)
	if err != nil {
		return domain.FeeResult{}, err
	}

	// A specialized charge type with no rule retries once against its
	// declared generic fallback, keeping the charge context.
	if result.Kind == domain.ResultNotFound {
		if generic, ok := domain.FallbackChargeTypes[req.Discriminators.ChargeType]; ok {
			retry := req
			retry.Discriminators.ChargeType = generic
			result, err = s.resolveOnce(ctx, retry)
			if err != nil {
				return domain.FeeResult{}, err
			}
		}
	}

	s.metrics.RecordFeeLookup(ctx, string(result.Kind))
	return result, nil
}

func (s *Service) resolveOnce(ctx context.Context, req domain.ResolveRequest) (domain.FeeResult, error) {
	lookup, err := s.rules.Lookup(ctx, s.db, req.ProductLine, req.Discriminators, req.AsOf)
	if err != nil {
		return domain.FeeResult{}, err
	}

	switch lookup.Outcome {
	case feeruledomain.LookupNotFound:
		return domain.FeeResult{Kind: domain.ResultNotFound}, nil

	case feeruledomain.LookupAmbiguous:
		candidates := lookup.Candidates
		// A currency preference can settle the tie without bothering
		// the user.
		if req.Currency != "" {
			matched := candidates[:0:0]
			for _, rule := range candidates {
				if strings.EqualFold(rule.Currency, req.Currency) {
					matched = append(matched, rule)
				}
			}
			if len(matched) == 1 {
				return s.evaluate(matched[0], lookup.All, req)
			}
			if len(matched) > 1 {
				candidates = matched
			}
		}
		return s.needsDisambiguation(ctx, req.ProductLine, candidates)

	default:
		return s.evaluate(*lookup.Rule, lookup.All, req)
	}
}

func (s *Service) ResolveToken(ctx context.Context, token, choice string, req domain.ResolveRequest) (domain.FeeResult, error) {
	options, ok, err := s.disambig.Take(ctx, strings.TrimSpace(token))
	if err != nil {
		return domain.FeeResult{}, err
	}
	if !ok {
		return domain.FeeResult{}, domain.ErrTokenExpired
	}

	choice = strings.TrimSpace(choice)
	var selected *disambig.Option
	for i, option := range options {
		if strings.EqualFold(option.Label, choice) || option.RuleID == choice {
			selected = &options[i]
			break
		}
	}
	if selected == nil {
		return domain.FeeResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownChoice, choice)
	}

	id, err := snowflake.ParseString(selected.RuleID)
	if err != nil {
		return domain.FeeResult{}, fmt.Errorf("%w: bad rule id", domain.ErrInvalidRequest)
	}
	rule, err := s.rules.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.FeeResult{}, err
	}
	if rule == nil {
		return domain.FeeResult{Kind: domain.ResultNotFound}, nil
	}

	if req.AsOf.IsZero() {
		req.AsOf = s.clock.Now()
	}
	// Re-run the lookup with the selected tuple so free-entitlement
	// fallbacks still see the lower-priority rules.
	lookup, err := s.rules.Lookup(ctx, s.db, selected.ProductLine, selected.Discriminators, req.AsOf)
	if err != nil {
		return domain.FeeResult{}, err
	}

	result, err := s.evaluate(*rule, lookup.All, req)
	if err != nil {
		return domain.FeeResult{}, err
	}
	s.metrics.RecordFeeLookup(ctx, string(result.Kind))
	return result, nil
}

func (s *Service) needsDisambiguation(ctx context.Context, line feeruledomain.ProductLine, candidates []feeruledomain.FeeRule) (domain.FeeResult, error) {
	options := make([]disambig.Option, 0, len(candidates))
	for _, rule := range candidates {
		options = append(options, disambig.Option{
			RuleID:         rule.ID.String(),
			ProductLine:    line,
			Discriminators: feeruledomain.DiscriminatorsOf(rule),
			Label:          distinguishingLabel(rule, candidates),
		})
	}

	ttl := s.assistant.Get().DisambigTTL
	token, err := s.disambig.Put(ctx, options, ttl)
	if err != nil {
		return domain.FeeResult{}, err
	}

	s.metrics.RecordDisambiguationIssued(ctx)
	return domain.FeeResult{
		Kind:    domain.ResultDisambiguation,
		Token:   token,
		Options: options,
	}, nil
}

// distinguishingLabel picks the discriminator value that separates this rule
// from its competitors.
func distinguishingLabel(rule feeruledomain.FeeRule, candidates []feeruledomain.FeeRule) string {
	fields := []struct {
		value string
		pick  func(feeruledomain.FeeRule) string
	}{
		{rule.ChargeContext, func(r feeruledomain.FeeRule) string { return r.ChargeContext }},
		{rule.CardProduct, func(r feeruledomain.FeeRule) string { return r.CardProduct }},
		{rule.CardNetwork, func(r feeruledomain.FeeRule) string { return r.CardNetwork }},
		{rule.CardCategory, func(r feeruledomain.FeeRule) string { return r.CardCategory }},
		{rule.LoanProduct, func(r feeruledomain.FeeRule) string { return r.LoanProduct }},
		{rule.Currency, func(r feeruledomain.FeeRule) string { return r.Currency }},
	}

	for _, field := range fields {
		if field.value == "" {
			continue
		}
		for _, other := range candidates {
			if other.ID != rule.ID && field.pick(other) != field.value {
				return field.value
			}
		}
	}
	return rule.ID.String()
}

func (s *Service) evaluate(rule feeruledomain.FeeRule, all []feeruledomain.FeeRule, req domain.ResolveRequest) (domain.FeeResult, error) {
	// The schedule defers to an external note. Never invent a value.
	if rule.FeeKind == feeruledomain.FeeKindNote || rule.Condition == feeruledomain.ConditionNoteBased {
		return domain.FeeResult{
			Kind:          domain.ResultNoteResolution,
			RuleID:        rule.ID.String(),
			NoteReference: rule.NoteReference,
		}, nil
	}

	if rule.FeeKind == feeruledomain.FeeKindText {
		return domain.FeeResult{
			Kind:     domain.ResultText,
			Currency: rule.Currency,
			Basis:    rule.FeeBasis,
			RuleID:   rule.ID.String(),
			Remark:   rule.FeeText,
		}, nil
	}

	if rule.FreeLimit != nil && (rule.FeeKind == feeruledomain.FeeKindFreeUpto || rule.Condition == feeruledomain.ConditionFreeUpto) {
		return s.evaluateFreeUpto(rule, all, req)
	}

	// The requested currency must match the rule's. Conversion is out of
	// scope by design; surface it as its own outcome.
	if req.Currency != "" && rule.Currency != "" && !strings.EqualFold(req.Currency, rule.Currency) {
		return domain.FeeResult{
			Kind:     domain.ResultFxRequired,
			Currency: rule.Currency,
			RuleID:   rule.ID.String(),
		}, nil
	}

	switch rule.FeeKind {
	case feeruledomain.FeeKindFixed:
		if rule.Amount == nil {
			return domain.FeeResult{}, fmt.Errorf("%w: fixed rule %s has no amount", domain.ErrInvalidRequest, rule.ID)
		}
		return domain.FeeResult{
			Kind:     domain.ResultCalculated,
			Amount:   *rule.Amount,
			Currency: rule.Currency,
			Basis:    rule.FeeBasis,
			RuleID:   rule.ID.String(),
		}, nil

	case feeruledomain.FeeKindPercent:
		return evaluatePercent(rule, req)

	case feeruledomain.FeeKindTiered:
		return evaluateTiered(rule, req)

	default:
		return domain.FeeResult{}, fmt.Errorf("%w: unsupported fee kind %q", domain.ErrInvalidRequest, rule.FeeKind)
	}
}

func (s *Service) evaluateFreeUpto(rule feeruledomain.FeeRule, all []feeruledomain.FeeRule, req domain.ResolveRequest) (domain.FeeResult, error) {
	limit := *rule.FreeLimit

	if req.UsageIndex == nil || *req.UsageIndex <= limit {
		return domain.FeeResult{
			Kind:     domain.ResultCalculated,
			Amount:   0,
			Currency: rule.Currency,
			Basis:    rule.FeeBasis,
			RuleID:   rule.ID.String(),
			Remark:   fmt.Sprintf("free for the first %d uses", limit),
		}, nil
	}

	// Past the entitlement: the next-priority matching rule prices the use.
	for _, next := range all {
		if next.ID == rule.ID || next.Priority >= rule.Priority {
			continue
		}
		return s.evaluate(next, nil, req)
	}
	return domain.FeeResult{Kind: domain.ResultNotFound}, nil
}

func evaluatePercent(rule feeruledomain.FeeRule, req domain.ResolveRequest) (domain.FeeResult, error) {
	if rule.Percent == nil {
		return domain.FeeResult{}, fmt.Errorf("%w: percent rule %s has no rate", domain.ErrInvalidRequest, rule.ID)
	}
	if req.Amount == nil {
		return domain.FeeResult{}, domain.ErrAmountRequired
	}

	value := *req.Amount * *rule.Percent / 100

	if rule.Condition == feeruledomain.ConditionWhicheverHigher && rule.MinAmount != nil {
		if *rule.MinAmount > value {
			value = *rule.MinAmount
		}
	} else {
		if rule.MinAmount != nil && value < *rule.MinAmount {
			value = *rule.MinAmount
		}
		if rule.MaxAmount != nil && value > *rule.MaxAmount {
			value = *rule.MaxAmount
		}
	}

	return domain.FeeResult{
		Kind:     domain.ResultCalculated,
		Amount:   value,
		Currency: rule.Currency,
		Basis:    rule.FeeBasis,
		RuleID:   rule.ID.String(),
	}, nil
}

func evaluateTiered(rule feeruledomain.FeeRule, req domain.ResolveRequest) (domain.FeeResult, error) {
	if req.Amount == nil {
		return domain.FeeResult{}, domain.ErrAmountRequired
	}
	tiers, err := feeruledomain.TiersOf(rule)
	if err != nil {
		return domain.FeeResult{}, err
	}
	if len(tiers) == 0 {
		return domain.FeeResult{}, fmt.Errorf("%w: tiered rule %s has no tiers", domain.ErrInvalidRequest, rule.ID)
	}

	// Thresholds are ascending upper bounds; the boundary value belongs to
	// the lower tier. Amounts above every threshold use the last tier.
	selected := tiers[len(tiers)-1]
	for _, tier := range tiers {
		if *req.Amount <= tier.Threshold {
			selected = tier
			break
		}
	}

	value := *req.Amount * selected.Rate / 100
	if selected.Cap != nil && value > *selected.Cap {
		value = *selected.Cap
	}

	return domain.FeeResult{
		Kind:     domain.ResultCalculated,
		Amount:   value,
		Currency: rule.Currency,
		Basis:    rule.FeeBasis,
		RuleID:   rule.ID.String(),
	}, nil
}

func validate(req domain.ResolveRequest) error {
	if !req.ProductLine.Valid() {
		return fmt.Errorf("%w: unknown product line %q", domain.ErrInvalidRequest, req.ProductLine)
	}
	if strings.TrimSpace(req.Discriminators.ChargeType) == "" {
		return fmt.Errorf("%w: charge_type is required", domain.ErrInvalidRequest)
	}
	return nil
}
