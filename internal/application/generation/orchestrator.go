package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"content-forge-api/internal/application/quota"
	"content-forge-api/internal/domain/entity"
	"content-forge-api/internal/domain/service"
	apperrors "content-forge-api/pkg/errors"
	"content-forge-api/pkg/logger"
	"content-forge-api/pkg/metrics"
	"content-forge-api/pkg/tracer"
)

// State 单次生成请求的编排阶段
type State int

const (
	StateValidating State = iota
	StatePromptBuilt
	StateAwaitingModel
	StateExtracting
	StateCommittingUsage
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StatePromptBuilt:
		return "prompt_built"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExtracting:
		return "extracting"
	case StateCommittingUsage:
		return "committing_usage"
	case StateDone:
		return "done"
	default:
		return "errored"
	}
}

// UsageLedger 编排器依赖的账本能力
type UsageLedger interface {
	Evaluate(ctx context.Context, userID string) (quota.Decision, error)
	IsRateLimited(ctx context.Context, model, userID string) (bool, error)
	CommitGeneration(ctx context.Context, userID, model string, opts ...quota.CommitOption) error
}

// ModelInfo 模型目录项
type ModelInfo struct {
	Name            string
	FunctionCalling bool
}

// Orchestrator 生成编排器：校验 → 提示词 → 闸门内调用模型 → 提取 HTML → 记账
type Orchestrator struct {
	prompts       *PromptBuilder
	gate          *Gate
	client        service.ModelClient
	ledger        UsageLedger
	models        map[string]ModelInfo
	defaultModel  string
	callTimeout   time.Duration
	commitTimeout time.Duration
	now           func() time.Time
}

// Option 编排器可选项
type Option func(*Orchestrator)

// WithCallTimeout 单次模型调用超时，超时释放闸门槽位并返回 UpstreamTimeout
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithCommitTimeout 生成后记账的超时
func WithCommitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.commitTimeout = d }
}

func WithDefaultModel(name string) Option {
	return func(o *Orchestrator) { o.defaultModel = name }
}

func NewOrchestrator(
	client service.ModelClient,
	gate *Gate,
	ledger UsageLedger,
	models []ModelInfo,
	opts ...Option,
) *Orchestrator {
	catalog := make(map[string]ModelInfo, len(models))
	for _, m := range models {
		catalog[m.Name] = m
	}
	o := &Orchestrator{
		prompts:       NewPromptBuilder(),
		gate:          gate,
		client:        client,
		ledger:        ledger,
		models:        catalog,
		callTimeout:   60 * time.Second,
		commitTimeout: 10 * time.Second,
		now:           time.Now,
	}
	if len(models) > 0 {
		o.defaultModel = models[0].Name
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run 单次请求的状态与耗时
type run struct {
	state       State
	contentType string
	model       string
	started     time.Time
}

func (r *run) advance(ctx context.Context, next State) {
	logger.Debug(ctx, "generation state changed", "from", r.state.String(), "to", next.String())
	r.state = next
}

// Generate 执行一次完整的生成编排
func (o *Orchestrator) Generate(ctx context.Context, req entity.GenerationRequest) (result *entity.GenerationResult, err error) {
	r := &run{state: StateValidating, contentType: req.ContentType, model: req.Model, started: o.now()}

	ctx, span := tracer.Start(ctx, "generation.Orchestrator.Generate")
	defer func() {
		o.finish(ctx, r, err)
		tracer.Finish(span, err)
	}()

	// Validating
	spec, form, err := Validate(req)
	if err != nil {
		return nil, err
	}
	r.contentType = string(spec.Type)
	info, err := o.resolveModel(req.Model)
	if err != nil {
		return nil, err
	}
	r.model = info.Name
	span.SetAttributes(
		attribute.String("content_type", r.contentType),
		attribute.String("model", r.model),
		attribute.Bool("anonymous", req.UserID == ""),
	)
	if err := o.admit(ctx, req.UserID, info.Name); err != nil {
		return nil, err
	}

	// PromptBuilt
	r.advance(ctx, StatePromptBuilt)
	prompt := o.prompts.Build(ctx, spec.Type, form, req.Template)

	// AwaitingModel
	r.advance(ctx, StateAwaitingModel)
	mode := service.ModeText
	if info.FunctionCalling {
		mode = service.ModeFunctionCall
	}
	callCtx := service.WithContentType(ctx, r.contentType)
	res, err := Schedule(callCtx, o.gate, func(ctx context.Context) (*service.ModelResult, error) {
		return o.callModel(ctx, service.ModelRequest{Model: info.Name, Prompt: prompt, Mode: mode})
	})
	if err != nil {
		return nil, o.mapGateError(ctx, err)
	}

	// Extracting
	r.advance(ctx, StateExtracting)
	htmlOut, err := ExtractHTML(res.Raw)
	if err != nil {
		return nil, err
	}
	result = &entity.GenerationResult{HTML: htmlOut}
	metrics.GenerationHTMLBytes.WithLabelValues(r.contentType).Observe(float64(len(htmlOut)))

	// CommittingUsage
	if strings.TrimSpace(req.UserID) != "" {
		r.advance(ctx, StateCommittingUsage)
		result.UsageWarning = o.commitUsage(ctx, req.UserID, info.Name, res.TotalTokens())
	}

	r.advance(ctx, StateDone)
	return result, nil
}

func (o *Orchestrator) resolveModel(name string) (ModelInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = o.defaultModel
	}
	info, ok := o.models[name]
	if !ok {
		return ModelInfo{}, apperrors.ErrUnknownModel.WithDetail(name)
	}
	return info, nil
}

// admit 有用户身份时检查生成资格与模型限额；匿名调用直接放行
func (o *Orchestrator) admit(ctx context.Context, userID, model string) error {
	if o.ledger == nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	decision, err := o.ledger.Evaluate(ctx, userID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		if decision.Reason != nil {
			return decision.Reason
		}
		return apperrors.ErrGenerationDenied
	}
	limited, err := o.ledger.IsRateLimited(ctx, model, userID)
	if err != nil {
		return err
	}
	if limited {
		return apperrors.ErrModelRateLimited.WithDetail(model)
	}
	return nil
}

// callModel 包一层只作用于模型调用的超时；调用方自身取消时保留原始错误
func (o *Orchestrator) callModel(ctx context.Context, req service.ModelRequest) (*service.ModelResult, error) {
	callCtx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	res, err := o.client.Generate(callCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.ErrUpstreamTimeout.WithError(err)
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ErrUpstreamFailed.WithError(err)
	}
	if res == nil {
		return nil, apperrors.ErrEmptyResponse
	}
	return res, nil
}

func (o *Orchestrator) mapGateError(ctx context.Context, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrUpstreamTimeout.WithDetail("request expired while waiting for a model slot").WithError(err)
	}
	logger.Warn(ctx, "generation abandoned before model call", "error", err.Error())
	return apperrors.ErrUpstreamFailed.WithError(err)
}

// commitUsage 生成已成功，记账失败只产生告警，不撤回内容
func (o *Orchestrator) commitUsage(ctx context.Context, userID, model string, tokens int) string {
	if o.ledger == nil {
		return ""
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.commitTimeout)
	defer cancel()

	err := o.ledger.CommitGeneration(commitCtx, userID, model, quota.WithTokens(tokens))
	if err == nil {
		return ""
	}
	logger.Warn(ctx, "usage commit failed after generation",
		"user_id", userID,
		"model", model,
		"error", err.Error(),
	)
	return "usage was not recorded: " + apperrors.AsAppError(err).Message
}

func (o *Orchestrator) finish(ctx context.Context, r *run, err error) {
	status := "success"
	if err != nil {
		failedAt := r.state
		r.state = StateErrored
		status = string(apperrors.AsAppError(err).Code)
		logger.Warn(ctx, "generation failed",
			"content_type", r.contentType,
			"model", r.model,
			"stage", failedAt.String(),
			"error", err.Error(),
		)
	}
	contentType := r.contentType
	if _, ok := entity.LookupContentType(contentType); !ok {
		contentType = "unknown"
	}
	model := r.model
	if _, ok := o.models[model]; !ok {
		model = "unknown"
	}
	metrics.GenerationTotal.WithLabelValues(contentType, model, status).Inc()
	metrics.GenerationDuration.WithLabelValues(contentType, model).Observe(o.now().Sub(r.started).Seconds())
}
