// Package quota 提供用户用量账本与模型排行榜
package quota

import (
	"context"
	"strconv"
	"strings"
	"time"

	"content-forge-api/internal/domain/entity"
	"content-forge-api/internal/domain/repository"
	apperrors "content-forge-api/pkg/errors"
	"content-forge-api/pkg/logger"
	"content-forge-api/pkg/metrics"
	"content-forge-api/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
)

// Decision 生成资格判断结果
type Decision struct {
	Allowed bool
	Role    entity.Role
	// Known 用户记录是否存在；不存在时按首次使用放行
	Known bool
	// Reason 拒绝原因，Allowed 为 true 时为空
	Reason *apperrors.AppError
}

// Ledger 用量账本：角色策略、额度扣减与模型计数
type Ledger struct {
	tx     repository.Transactor
	users  repository.UserRepository
	models repository.ModelRateLimitRepository
	daily  DailyPolicy
	retry  RetryPolicy
	now    func() time.Time

	listener ModelChangeListener
}

// ModelChangeListener 模型记录提交成功后的回调，用于让读缓存失效
type ModelChangeListener interface {
	ModelChanged(ctx context.Context, model string)
}

// LedgerOption 账本可选项
type LedgerOption func(*Ledger)

// WithClock 替换时钟
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithRetryPolicy 替换重试策略
func WithRetryPolicy(p RetryPolicy) LedgerOption {
	return func(l *Ledger) { l.retry = p }
}

// WithChangeListener 注册模型记录变化回调，nil 表示不通知
func WithChangeListener(listener ModelChangeListener) LedgerOption {
	return func(l *Ledger) { l.listener = listener }
}

// NewLedger 创建用量账本
func NewLedger(
	tx repository.Transactor,
	users repository.UserRepository,
	models repository.ModelRateLimitRepository,
	daily DailyPolicy,
	opts ...LedgerOption,
) *Ledger {
	if daily == nil {
		daily = calendarDay{loc: time.Local}
	}
	l := &Ledger{
		tx:     tx,
		users:  users,
		models: models,
		daily:  daily,
		retry:  DefaultRetryPolicy(3, time.Second),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Evaluate 判断用户当前是否具备生成资格
func (l *Ledger) Evaluate(ctx context.Context, userID string) (Decision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Decision{Allowed: true, Role: entity.RoleGuest}, nil
	}

	var user *entity.User
	err := l.retry.Do(ctx, "get_user", func(ctx context.Context) error {
		var getErr error
		user, getErr = l.users.GetByID(ctx, userID)
		return getErr
	})
	if err != nil {
		return Decision{}, err
	}
	if user == nil {
		logger.Debug(ctx, "user record missing, treating as first-time user", "user_id", userID)
		return Decision{Allowed: true, Role: entity.RoleFree}, nil
	}

	role, _ := entity.ParseRole(string(user.Role))
	policy, err := PolicyFor(role, l.daily)
	if err != nil {
		logger.Error(ctx, "user has unknown role", err, "user_id", userID, "role", string(user.Role))
		metrics.LedgerDecisionTotal.WithLabelValues("unknown", "false").Inc()
		return Decision{Role: role, Known: true, Reason: apperrors.AsAppError(err)}, nil
	}

	d := Decision{Role: role, Known: true, Allowed: policy.Allows(user, l.now())}
	if !d.Allowed {
		d.Reason = denialReason(role)
	}
	metrics.LedgerDecisionTotal.WithLabelValues(string(role), strconv.FormatBool(d.Allowed)).Inc()
	return d, nil
}

func denialReason(role entity.Role) *apperrors.AppError {
	switch role {
	case entity.RolePaid:
		return apperrors.ErrInsufficientCredits
	case entity.RoleFree:
		return apperrors.ErrGenerationDenied.WithDetail("daily generation limit reached")
	default:
		return apperrors.ErrGenerationDenied
	}
}

// CanGenerate 用户是否可以发起生成；记录缺失视为首次使用
func (l *Ledger) CanGenerate(ctx context.Context, userID string) (bool, error) {
	d, err := l.Evaluate(ctx, userID)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// CommitOption 记账可选项
type CommitOption func(*commitOptions)

type commitOptions struct {
	tokens int
}

// WithTokens 附带本次调用消耗的 token 数，计入 tpm
func WithTokens(n int) CommitOption {
	return func(o *commitOptions) { o.tokens = n }
}

// CommitGeneration 在单个事务内完成：重新读取用户与模型、重新校验前置条件、
// 施加一次角色变更、模型 rpm 加一
func (l *Ledger) CommitGeneration(ctx context.Context, userID, model string, opts ...CommitOption) (err error) {
	var o commitOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := tracer.Start(ctx, "quota.Ledger.CommitGeneration")
	span.SetAttributes(attribute.String("user_id", userID), attribute.String("model", model))
	defer func() { tracer.Finish(span, err) }()

	var role entity.Role
	err = l.retry.Do(ctx, "commit_generation", func(ctx context.Context) error {
		return l.tx.WithTransaction(ctx, func(ctx context.Context) error {
			now := l.now()

			user, err := l.users.GetForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if user == nil {
				user = entity.NewUser(userID)
				if err := l.users.Create(ctx, user); err != nil {
					return err
				}
				// 重新加锁读取，避免并发创建时覆盖
				if user, err = l.users.GetForUpdate(ctx, userID); err != nil {
					return err
				}
				if user == nil {
					return repository.MarkTransient(errUserVanished)
				}
			}

			role, _ = entity.ParseRole(string(user.Role))
			policy, err := PolicyFor(role, l.daily)
			if err != nil {
				return err
			}
			changed, err := policy.Apply(user, now)
			if err != nil {
				return err
			}
			if changed {
				user.Role = role
				if err := l.users.Save(ctx, user); err != nil {
					return err
				}
			}

			record, err := l.models.GetForUpdate(ctx, model)
			if err != nil {
				return err
			}
			if record == nil {
				return apperrors.ErrUnknownModel.WithDetail(model)
			}
			record.ResetExpiredWindows(now)
			record.RecordGeneration(o.tokens)
			return l.models.Save(ctx, record)
		})
	})

	status := "success"
	if err != nil {
		status = "failed"
		if apperrors.HasCode(err, apperrors.CodeInsufficientCredits) {
			status = "insufficient_credits"
		}
	}
	metrics.LedgerCommitTotal.WithLabelValues(roleLabel(role), status).Inc()
	if err != nil {
		return err
	}

	l.notifyModelChanged(ctx, model)
	logger.Info(ctx, "generation committed", "user_id", userID, "model", model, "role", string(role))
	return nil
}

func (l *Ledger) notifyModelChanged(ctx context.Context, model string) {
	if l.listener != nil {
		l.listener.ModelChanged(ctx, model)
	}
}

var errUserVanished = apperrors.New(apperrors.CodeStoreTransient, "user record disappeared during commit")

func roleLabel(r entity.Role) string {
	if r.Valid() {
		return string(r)
	}
	return "unknown"
}

// IsRateLimited 模型当前是否达到限额；管理员不受限，模型记录缺失视为不受限
func (l *Ledger) IsRateLimited(ctx context.Context, model, userID string) (bool, error) {
	if userID = strings.TrimSpace(userID); userID != "" {
		var user *entity.User
		err := l.retry.Do(ctx, "get_user", func(ctx context.Context) error {
			var getErr error
			user, getErr = l.users.GetByID(ctx, userID)
			return getErr
		})
		if err != nil {
			return false, err
		}
		if user != nil {
			role, _ := entity.ParseRole(string(user.Role))
			if policy, perr := PolicyFor(role, l.daily); perr == nil && policy.BypassRateLimit() {
				return false, nil
			}
		}
	}

	// 窗口未过期时只读判断，不锁热点行
	var current *entity.ModelRateLimit
	err := l.retry.Do(ctx, "get_model", func(ctx context.Context) error {
		var getErr error
		current, getErr = l.models.GetByModel(ctx, model)
		return getErr
	})
	if err != nil {
		return false, err
	}
	if current == nil {
		logger.Warn(ctx, "model rate limit record missing, not limiting", "model", model)
		return false, nil
	}
	if snapshot := *current; !snapshot.ResetExpiredWindows(l.now()) {
		return current.Exhausted(), nil
	}

	limited := false
	err = l.retry.Do(ctx, "check_rate_limit", func(ctx context.Context) error {
		return l.tx.WithTransaction(ctx, func(ctx context.Context) error {
			record, err := l.models.GetForUpdate(ctx, model)
			if err != nil {
				return err
			}
			if record == nil {
				limited = false
				return nil
			}
			if record.ResetExpiredWindows(l.now()) {
				if err := l.models.Save(ctx, record); err != nil {
					return err
				}
			}
			limited = record.Exhausted()
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return limited, nil
}

// SubmitRating 累计一次模型评分
func (l *Ledger) SubmitRating(ctx context.Context, model string, rating entity.Rating) error {
	if err := rating.Validate(); err != nil {
		return apperrors.ErrInvalidParam.WithDetail(err.Error())
	}

	err := l.retry.Do(ctx, "submit_rating", func(ctx context.Context) error {
		return l.tx.WithTransaction(ctx, func(ctx context.Context) error {
			record, err := l.models.GetForUpdate(ctx, model)
			if err != nil {
				return err
			}
			if record == nil {
				return apperrors.ErrUnknownModel.WithDetail(model)
			}
			record.AddRating(rating)
			return l.models.Save(ctx, record)
		})
	})
	if err != nil {
		return err
	}

	l.notifyModelChanged(ctx, model)
	metrics.RatingSubmittedTotal.WithLabelValues(model).Inc()
	logger.Info(ctx, "model rating submitted", "model", model)
	return nil
}

// EnsureUser 获取用户记录，不存在时按注册默认值创建
func (l *Ledger) EnsureUser(ctx context.Context, userID string) (*entity.User, error) {
	var user *entity.User
	err := l.retry.Do(ctx, "ensure_user", func(ctx context.Context) error {
		existing, err := l.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			user = existing
			return nil
		}
		created := entity.NewUser(userID)
		if err := l.users.Create(ctx, created); err != nil {
			return err
		}
		user, err = l.users.GetByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GrantCredits 为付费用户增加额度
func (l *Ledger) GrantCredits(ctx context.Context, userID string, n int) (*entity.User, error) {
	if n <= 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("credits must be positive")
	}

	var user *entity.User
	err := l.retry.Do(ctx, "grant_credits", func(ctx context.Context) error {
		return l.tx.WithTransaction(ctx, func(ctx context.Context) error {
			u, err := l.users.GetForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if u == nil {
				return apperrors.ErrNotFound.WithDetail("user " + userID)
			}
			if role, _ := entity.ParseRole(string(u.Role)); role != entity.RolePaid {
				return apperrors.ErrInvalidParam.WithDetail("credits can only be granted to paid users")
			}
			u.Role = entity.RolePaid
			u.Credits += n
			if err := l.users.Save(ctx, u); err != nil {
				return err
			}
			user = u
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "credits granted", "user_id", userID, "credits", n, "balance", user.Credits)
	return user, nil
}
