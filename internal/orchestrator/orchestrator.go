package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	analyticsdomain "github.com/edgebank/assist/internal/analytics/domain"
	"github.com/edgebank/assist/internal/classifier"
	"github.com/edgebank/assist/internal/config"
	convmemdomain "github.com/edgebank/assist/internal/convmem/domain"
	directorydomain "github.com/edgebank/assist/internal/directory/domain"
	"github.com/edgebank/assist/internal/disambig"
	feecalcdomain "github.com/edgebank/assist/internal/feecalc/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	"github.com/edgebank/assist/internal/llm"
	obsmetrics "github.com/edgebank/assist/internal/observability/metrics"
	retrievaldomain "github.com/edgebank/assist/internal/retrieval/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	msgUnavailable    = "The assistant is temporarily unavailable. Please try again in a few minutes."
	msgGenericFailure = "Sorry, something went wrong while answering your question. Please try again."
	msgDirectoryDown  = "The employee directory is currently unavailable. Please try again later."
)

// ErrEmptyQuery is a caller mistake, surfaced as a validation failure.
var ErrEmptyQuery = errors.New("empty_query")

type backingSource string

const (
	sourceNone      backingSource = "none"
	sourceDirectory backingSource = "directory"
	sourceFeeEngine backingSource = "fee_engine"
	sourceRetrieval backingSource = "retrieval"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Assistant  *config.AssistantConfigHolder
	Classifier *classifier.Classifier
	Fees       feecalcdomain.Service
	Retrieval  retrievaldomain.Service
	Directory  directorydomain.Service
	Memory     convmemdomain.Service
	Analytics  analyticsdomain.Service
	Disambig   *disambig.Store
	Provider   llm.Provider
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

// Orchestrator drives one user turn through classification, backing calls,
// prompt assembly, streaming and persistence.
type Orchestrator struct {
	log        *zap.Logger
	assistant  *config.AssistantConfigHolder
	classifier *classifier.Classifier
	fees       feecalcdomain.Service
	retrieval  retrievaldomain.Service
	directory  directorydomain.Service
	memory     convmemdomain.Service
	analytics  analyticsdomain.Service
	disambig   *disambig.Store
	provider   llm.Provider
	metrics    *obsmetrics.Metrics
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		log:        p.Log.Named("orchestrator"),
		assistant:  p.Assistant,
		classifier: p.Classifier,
		fees:       p.Fees,
		retrieval:  p.Retrieval,
		directory:  p.Directory,
		memory:     p.Memory,
		analytics:  p.Analytics,
		disambig:   p.Disambig,
		provider:   p.Provider,
		metrics:    p.Metrics,
	}
}

// turn carries the per-request state machine.
type turn struct {
	req      TurnRequest
	query    string
	start    time.Time
	cfg      config.AssistantConfig
	decision classifier.Decision
	sink     Sink

	result TurnResult
	source backingSource
}

// HandleTurn runs one user turn end to end. Stream frames go to sink; the
// returned result summarizes the finished turn for non-streaming callers.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest, sink Sink) (TurnResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return TurnResult{}, ErrEmptyQuery
	}

	t := &turn{
		req:   req,
		query: query,
		start: time.Now(),
		cfg:   o.assistant.Get(),
		sink:  sink,
	}
	t.result.SessionID = req.SessionID
	if t.result.SessionID == "" {
		t.result.SessionID = ulid.Make().String()
	}
	t.result.State = StateReceived
	t.source = sourceNone

	if handled, err := o.tryPendingDisambiguation(ctx, t); handled {
		return o.finish(ctx, t, err)
	}

	t.decision = o.classifier.Classify(query)
	t.result.Route = t.decision.Route
	t.result.State = StateClassified

	var err error
	switch t.decision.Route {
	case classifier.RouteSmallTalk:
		t.result.State = StateSmallTalk
		err = o.answerWithModel(ctx, t, nil, false)
	case classifier.RouteDirectory:
		err = o.answerDirectory(ctx, t)
	case classifier.RouteCardFees:
		err = o.answerFees(ctx, t)
	default:
		err = o.answerRetrieval(ctx, t, t.decision.Namespace, t.decision.FilterFinancial)
	}

	return o.finish(ctx, t, err)
}

// tryPendingDisambiguation resolves an outstanding token when the current
// query names one of its options. Unrelated queries leave the token pending.
func (o *Orchestrator) tryPendingDisambiguation(ctx context.Context, t *turn) (bool, error) {
	token, ok, err := o.disambig.PendingToken(ctx, t.result.SessionID)
	if err != nil || !ok {
		return false, nil
	}

	options, ok, err := o.disambig.Peek(ctx, token)
	if err != nil || !ok {
		_ = o.disambig.ClearSession(ctx, t.result.SessionID)
		return false, nil
	}

	normalized := retrievaldomain.Normalize(t.query)
	choice := ""
	for _, option := range options {
		label := retrievaldomain.Normalize(strings.ReplaceAll(option.Label, "_", " "))
		if strings.Contains(normalized, label) ||
			strings.Contains(normalized, strings.ToLower(option.Label)) {
			choice = option.Label
			break
		}
	}
	if choice == "" {
		return false, nil
	}

	t.result.Route = classifier.RouteCardFees
	t.source = sourceFeeEngine

	entities := classifier.ExtractEntities(normalized)
	feeCtx, cancel := context.WithTimeout(ctx, t.cfg.FeeEngineTimeout)
	defer cancel()

	result, err := o.fees.ResolveToken(feeCtx, token, choice, feecalcdomain.ResolveRequest{
		Amount:   entities.Amount,
		Currency: entities.Currency,
	})
	_ = o.disambig.ClearSession(ctx, t.result.SessionID)
	if err != nil {
		return true, o.emitText(t, msgGenericFailure, false)
	}
	return true, o.emitFeeResult(t, result)
}

func (o *Orchestrator) answerDirectory(ctx context.Context, t *turn) error {
	t.source = sourceDirectory
	t.result.State = StateResolved

	hits, err := o.directory.Search(ctx, t.query, t.cfg.DirectoryMaxResults)
	if err != nil {
		o.log.Warn("directory search failed", zap.Error(err))
		return o.emitText(t, msgDirectoryDown, false)
	}

	if len(hits) == 0 {
		term := directorydomain.SearchTerm(t.query)
		return o.emitText(t, fmt.Sprintf("I could not find anyone matching %q in the employee directory.", term), false)
	}

	var b strings.Builder
	if len(hits) == 1 {
		b.WriteString("Here is the contact you asked for:\n")
	} else {
		fmt.Fprintf(&b, "I found %d matching contacts:\n", len(hits))
	}
	for _, hit := range hits {
		e := hit.Employee
		fmt.Fprintf(&b, "%s — %s, %s", e.Name, e.Designation, e.Department)
		if e.Branch != "" {
			fmt.Fprintf(&b, " (%s)", e.Branch)
		}
		if e.Mobile != "" {
			fmt.Fprintf(&b, ". Mobile: %s", e.Mobile)
		}
		if e.Email != "" {
			fmt.Fprintf(&b, ". Email: %s", e.Email)
		}
		b.WriteString("\n")
	}

	t.result.Sources = []string{"employee-directory"}
	return o.emitText(t, strings.TrimSpace(b.String()), true)
}

func (o *Orchestrator) answerFees(ctx context.Context, t *turn) error {
	t.source = sourceFeeEngine

	entities := t.decision.Entities
	feeReq := feecalcdomain.ResolveRequest{
		ProductLine: productLineOf(entities),
		Discriminators: feeruledomain.Discriminators{
			ChargeType:    entities.ChargeType,
			CardCategory:  entities.CardCategory,
			CardNetwork:   entities.CardNetwork,
			CardProduct:   entities.CardProduct,
			LoanProduct:   entities.LoanProduct,
			ChargeContext: entities.ChargeContext,
		},
		AsOf:     time.Now().UTC(),
		Amount:   entities.Amount,
		Currency: entities.Currency,
	}
	if feeReq.Discriminators.ChargeType == "" {
		// A fee question with no recognizable charge type cannot hit the
		// rule store; answer from the product knowledge base instead.
		return o.answerRetrieval(ctx, t, retrievaldomain.NamespaceProducts, false)
	}

	feeCtx, cancel := context.WithTimeout(ctx, t.cfg.FeeEngineTimeout)
	result, err := o.fees.Resolve(feeCtx, feeReq)
	cancel()
	if err != nil {
		o.log.Warn("fee resolution failed, falling back to retrieval", zap.Error(err))
		return o.answerRetrieval(ctx, t, retrievaldomain.NamespaceProducts, false)
	}
	t.result.State = StateResolved

	if result.Kind == feecalcdomain.ResultNotFound {
		return o.answerRetrieval(ctx, t, retrievaldomain.NamespaceProducts, false)
	}
	return o.emitFeeResult(t, result)
}

// emitFeeResult renders an authoritative fee-engine outcome without the
// model; the engine's answer is final and must not be paraphrased.
func (o *Orchestrator) emitFeeResult(t *turn, result feecalcdomain.FeeResult) error {
	switch result.Kind {
	case feecalcdomain.ResultCalculated:
		t.result.Sources = []string{feeSource(result.RuleID)}
		return o.emitText(t, formatCalculated(result), true)

	case feecalcdomain.ResultText:
		t.result.Sources = []string{feeSource(result.RuleID)}
		return o.emitText(t, formatTextFee(result), true)

	case feecalcdomain.ResultNoteResolution:
		t.result.Sources = []string{feeSource(result.RuleID)}
		text := fmt.Sprintf("This charge is specified as per %s in the schedule of charges. Please refer to that note or contact the call center for the exact value.", result.NoteReference)
		return o.emitText(t, text, true)

	case feecalcdomain.ResultFxRequired:
		t.result.Sources = []string{feeSource(result.RuleID)}
		text := fmt.Sprintf("This fee is defined in %s and currency conversion is not supported. Please ask for the fee in %s.", result.Currency, result.Currency)
		return o.emitText(t, text, true)

	case feecalcdomain.ResultDisambiguation:
		t.result.State = StateAwaitingDisambiguation
		t.result.Token = result.Token

		ctx := context.WithoutCancel(context.Background())
		if err := o.disambig.AssociateSession(ctx, t.result.SessionID, result.Token, t.cfg.DisambigTTL); err != nil {
			o.log.Warn("failed to associate disambiguation token", zap.Error(err))
		}

		var b strings.Builder
		b.WriteString("That fee depends on which variant you mean. Please pick one:\n")
		for _, option := range result.Options {
			fmt.Fprintf(&b, "- %s\n", option.Label)
		}
		return o.emitText(t, strings.TrimSpace(b.String()), true)

	default:
		return o.emitText(t, msgGenericFailure, false)
	}
}

func (o *Orchestrator) answerRetrieval(ctx context.Context, t *turn, namespace retrievaldomain.Namespace, filterFinancial bool) error {
	if o.directoryIsolationViolated(t) {
		// A directory-routed turn must never reach here.
		o.log.Error("directory isolation violation blocked", zap.String("session", t.result.SessionID))
		return o.emitText(t, msgGenericFailure, false)
	}

	t.source = sourceRetrieval
	if override := retrievaldomain.Namespace(t.req.KnowledgeBase); override.Valid() {
		namespace = override
	}
	if !namespace.Valid() {
		namespace = retrievaldomain.NamespaceDefault
	}

	var result retrievaldomain.Result
	var history []convmemdomain.Turn

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		result, err = o.retrieval.Retrieve(groupCtx, retrievaldomain.Request{
			Namespace:       namespace,
			Query:           t.query,
			FilterFinancial: filterFinancial,
		})
		return err
	})
	group.Go(func() error {
		// History is best effort; a memory hiccup must not cancel the
		// retrieval fetch running next to it.
		recent, err := o.memory.Recent(groupCtx, t.result.SessionID, t.cfg.HistoryDepth)
		if err != nil {
			o.log.Warn("history fetch failed", zap.Error(err))
			return nil
		}
		history = recent
		return nil
	})

	retrievalErr := group.Wait()
	if retrievalErr != nil {
		o.log.Warn("retrieval failed, answering without context", zap.Error(retrievalErr))
	}
	t.result.State = StateResolved

	blocks := make([]contextBlock, 0, len(result.Passages))
	for _, passage := range result.Passages {
		blocks = append(blocks, contextBlock{Source: passage.SourceID, Text: passage.Text})
	}
	t.result.Sources = result.Sources

	return o.streamWithModel(ctx, t, blocks, history, len(blocks) == 0)
}

// answerWithModel handles turns that need no external context.
func (o *Orchestrator) answerWithModel(ctx context.Context, t *turn, blocks []contextBlock, noContext bool) error {
	history, err := o.memory.Recent(ctx, t.result.SessionID, t.cfg.HistoryDepth)
	if err != nil {
		o.log.Warn("history fetch failed", zap.Error(err))
	}
	return o.streamWithModel(ctx, t, blocks, history, noContext)
}

func (o *Orchestrator) streamWithModel(ctx context.Context, t *turn, blocks []contextBlock, history []convmemdomain.Turn, noContext bool) error {
	t.result.State = StatePrompted
	system, messages := buildPrompt(promptInput{
		query:     t.query,
		context:   blocks,
		history:   history,
		noContext: noContext,
	})

	t.result.State = StateStreaming
	text, err := o.streamOnce(ctx, t, system, messages)

	// A context-length failure gets one retry with a trimmed history
	// window.
	if errors.Is(err, llm.ErrContextLength) {
		system, messages = buildPrompt(promptInput{
			query:     t.query,
			context:   blocks,
			history:   trimHistory(history),
			noContext: noContext,
		})
		text, err = o.streamOnce(ctx, t, system, messages)
	}

	if err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		switch {
		case errors.Is(err, llm.ErrRateLimited):
			return o.emitText(t, msgUnavailable, false)
		default:
			o.log.Warn("model stream failed", zap.Error(err))
			return o.emitText(t, msgGenericFailure, false)
		}
	}

	t.result.Response = Postprocess(text)
	t.result.WasAnswered = !noContext || t.decision.Route == classifier.RouteSmallTalk
	if t.result.Response == "" {
		t.result.WasAnswered = false
	}
	return nil
}

// streamOnce runs a single provider stream, enforcing the first-token wait
// and total model timeout, emitting chunks to the sink as they arrive.
func (o *Orchestrator) streamOnce(ctx context.Context, t *turn, system string, messages []llm.Message) (string, error) {
	modelCtx, cancel := context.WithTimeout(ctx, t.cfg.ModelTimeout)
	defer cancel()

	firstTokenTimer := time.AfterFunc(t.cfg.FirstTokenWait, cancel)
	defer firstTokenTimer.Stop()

	var buf strings.Builder
	first := true
	streamStart := time.Now()

	err := o.provider.Stream(modelCtx, llm.StreamRequest{
		Model:       t.cfg.Model,
		System:      system,
		History:     messages,
		Temperature: t.cfg.Temperature,
		MaxTokens:   t.cfg.MaxTokens,
	}, func(chunk string) error {
		if first {
			first = false
			firstTokenTimer.Stop()
			o.metrics.RecordFirstToken(ctx, time.Since(streamStart))
		}
		buf.WriteString(chunk)
		if t.sink == nil {
			return nil
		}
		return t.sink(Event{Type: EventText, Text: chunk})
	})
	return buf.String(), err
}

// emitText sends a complete deterministic response as a single frame.
func (o *Orchestrator) emitText(t *turn, text string, answered bool) error {
	t.result.Response = text
	t.result.WasAnswered = answered
	if t.sink == nil {
		return nil
	}
	return t.sink(Event{Type: EventText, Text: text})
}

// finish emits the single sources envelope, persists the turn, and records
// analytics. It runs for every turn, including failures and cancellations.
func (o *Orchestrator) finish(ctx context.Context, t *turn, turnErr error) (TurnResult, error) {
	cancelled := errors.Is(turnErr, context.Canceled) || ctx.Err() != nil

	if cancelled {
		t.result.State = StateFailed
		t.result.WasAnswered = false
		o.metrics.RecordStreamCancelled(context.WithoutCancel(ctx))
	} else {
		if t.sink != nil {
			sources := t.result.Sources
			if sources == nil {
				sources = []string{}
			}
			if err := t.sink(Event{Type: EventSources, Sources: sources}); err != nil {
				o.log.Debug("sources frame not delivered", zap.Error(err))
			}
		}
		if t.result.State != StateAwaitingDisambiguation &&
			t.result.State != StateSmallTalk {
			if turnErr != nil {
				t.result.State = StateFailed
			} else {
				t.result.State = StateFinalized
			}
		}
	}

	o.persist(context.WithoutCancel(ctx), t)

	if turnErr != nil && !cancelled {
		// Recovered upstream failures already produced a user-visible
		// message; do not propagate them to the transport.
		o.log.Warn("turn finished with recovered error", zap.Error(turnErr))
	}
	if cancelled {
		return t.result, turnErr
	}
	return t.result, nil
}

func (o *Orchestrator) persist(ctx context.Context, t *turn) {
	seq, err := o.memory.UserTurnCount(ctx, t.result.SessionID)
	if err != nil {
		o.log.Warn("user turn count failed", zap.Error(err))
	}
	turnSeq := int(seq) + 1

	if _, err := o.memory.Append(ctx, t.result.SessionID, convmemdomain.RoleUser, t.query); err != nil {
		o.log.Warn("failed to persist user turn", zap.Error(err))
	}
	if t.result.Response != "" {
		if _, err := o.memory.Append(ctx, t.result.SessionID, convmemdomain.RoleAssistant, t.result.Response); err != nil {
			o.log.Warn("failed to persist assistant turn", zap.Error(err))
		}
	}

	if err := o.analytics.Record(ctx, analyticsdomain.TurnRecord{
		SessionID:     t.result.SessionID,
		TurnSeq:       turnSeq,
		Query:         t.query,
		Response:      t.result.Response,
		Route:         string(t.result.Route),
		BackingSource: string(t.source),
		WasAnswered:   t.result.WasAnswered,
		LatencyMillis: time.Since(t.start).Milliseconds(),
		ClientIP:      t.req.ClientIP,
	}); err != nil {
		o.log.Warn("failed to record analytics turn", zap.Error(err))
	}

	o.metrics.RecordTurn(ctx, string(t.source), t.result.WasAnswered)
}

// directoryIsolationViolated guards the hard invariant that directory turns
// never reach retrieval.
func (o *Orchestrator) directoryIsolationViolated(t *turn) bool {
	return t.cfg.DirectoryIsolation && t.decision.Route == classifier.RouteDirectory
}

func productLineOf(e classifier.Entities) feeruledomain.ProductLine {
	if e.LoanProduct != "" {
		return feeruledomain.ProductLineRetailAsset
	}
	return feeruledomain.ProductLineCreditCard
}

func feeSource(ruleID string) string {
	return "fee-schedule:" + ruleID
}

// formatTextFee surfaces a schedule entry whose fee is defined as prose. The
// text is the authoritative answer and is repeated verbatim.
func formatTextFee(result feecalcdomain.FeeResult) string {
	text := strings.TrimSuffix(strings.TrimSpace(result.Remark), ".")
	return fmt.Sprintf("As per the schedule of charges: %s.", text)
}

func formatCalculated(result feecalcdomain.FeeResult) string {
	var b strings.Builder
	if result.Amount == 0 && result.Remark != "" {
		// Only free-upto entitlements produce a zero amount with a remark.
		fmt.Fprintf(&b, "There is no charge: %s.", result.Remark)
		return b.String()
	}

	fmt.Fprintf(&b, "The fee is %s %s", strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", result.Amount), "0"), "."), result.Currency)
	switch result.Basis {
	case feeruledomain.BasisPerYear:
		b.WriteString(" per year")
	case feeruledomain.BasisPerTransaction:
		b.WriteString(" per transaction")
	case feeruledomain.BasisPerVisit:
		b.WriteString(" per visit")
	case feeruledomain.BasisPerRequest:
		b.WriteString(" per request")
	case feeruledomain.BasisOnOutstanding:
		b.WriteString(" on the outstanding amount")
	}
	b.WriteString(".")
	if result.Remark != "" {
		b.WriteString(" " + result.Remark + ".")
	}
	return b.String()
}
