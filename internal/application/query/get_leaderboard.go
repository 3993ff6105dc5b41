package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/shared"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
	"github.com/alem-hub/alem-gamification/internal/domain/student"
	"github.com/alem-hub/alem-gamification/pkg/circuitbreaker"
	"github.com/alem-hub/alem-gamification/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Строит рейтинг по журналу на каждый запрос. Лидерборд класса и учреждения -
// один и тот же алгоритм с разной областью.
// Порядок: суммы по (студент, тип) → группировка → сортировка → ранги →
// усечение до limit → пакетное обогащение только оставшихся строк.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// InstitutionID - фильтр по учреждению (пусто = все).
	InstitutionID string

	// ClassID - фильтр по классу (пусто = все).
	ClassID string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров и нормализует лимит.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return shared.ErrInvalidLimit
	}
	q.Limit = shared.NormalizeLimit(q.Limit)
	q.InstitutionID = strings.TrimSpace(q.InstitutionID)
	q.ClassID = strings.TrimSpace(q.ClassID)
	return nil
}

// Scope возвращает доменную область запроса.
func (q GetLeaderboardQuery) Scope() leaderboard.Scope {
	return leaderboard.Scope{
		InstitutionID: shared.InstitutionID(q.InstitutionID),
		ClassID:       shared.ClassID(q.ClassID),
	}
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда в порядке рангов.
	Entries []leaderboard.Entry `json:"entries"`

	// TotalCount - количество студентов в области (до усечения).
	TotalCount int `json:"total_count"`

	InstitutionID string `json:"institution_id,omitempty"`
	ClassID       string `json:"class_id,omitempty"`
	Limit         int    `json:"limit"`

	// FromCache - ответ взят из кеша.
	FromCache bool `json:"from_cache"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardConfig содержит настройки обработчика.
type GetLeaderboardConfig struct {
	// CacheTTL - время жизни кеша ответа. 0 - кеш выключен.
	CacheTTL time.Duration

	Location *time.Location
	Clock    timeutil.Clock
	Logger   *slog.Logger
}

// DefaultGetLeaderboardConfig возвращает настройки по умолчанию.
func DefaultGetLeaderboardConfig() GetLeaderboardConfig {
	return GetLeaderboardConfig{
		CacheTTL: 5 * time.Minute,
		Location: timeutil.AlmatyTZ,
		Clock:    timeutil.SystemClock{},
		Logger:   slog.Default(),
	}
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	leaderboardRepo leaderboard.Repository
	cache           leaderboard.Cache
	breaker         *circuitbreaker.CircuitBreaker
	rosterRepo      student.Repository
	badgeRepo       badge.Repository
	streakRepo      streak.Repository

	group  singleflight.Group
	config GetLeaderboardConfig
	logger *slog.Logger
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса лидерборда.
// cache может быть nil: тогда каждый запрос считается заново.
func NewGetLeaderboardHandler(
	leaderboardRepo leaderboard.Repository,
	cache leaderboard.Cache,
	rosterRepo student.Repository,
	badgeRepo badge.Repository,
	streakRepo streak.Repository,
	config GetLeaderboardConfig,
) *GetLeaderboardHandler {
	defaults := DefaultGetLeaderboardConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	logger := config.Logger.With("component", "leaderboard")
	return &GetLeaderboardHandler{
		leaderboardRepo: leaderboardRepo,
		cache:           cache,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("cache circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		rosterRepo: rosterRepo,
		badgeRepo:  badgeRepo,
		streakRepo: streakRepo,
		config:     config,
		logger:     logger,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	scope := query.Scope()

	// Поколение читается один раз и до расчёта: начисление, закоммиченное
	// во время расчёта, сдвинет поколение, и наш результат в кеше не всплывёт.
	gen, cacheOK := h.cacheGeneration(ctx)
	if cacheOK {
		if board, ok := h.tryGetFromCache(ctx, gen, scope, query.Limit); ok {
			return h.buildResult(query, board, true), nil
		}
	}

	// Одинаковые одновременные запросы одного поколения считаются один раз.
	key := fmt.Sprintf("%d|%s|%d", gen, scope.Key(), query.Limit)
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		return h.compute(ctx, scope, query.Limit)
	})
	if err != nil {
		return nil, err
	}
	board := v.(*leaderboard.Board)

	if cacheOK {
		h.storeInCache(ctx, gen, scope, query.Limit, board)
	}

	return h.buildResult(query, board, false), nil
}

// compute строит рейтинг из журнала и обогащает верхние limit строк.
func (h *GetLeaderboardHandler) compute(ctx context.Context, scope leaderboard.Scope, limit int) (*leaderboard.Board, error) {
	totals, err := h.leaderboardRepo.TotalsInScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	ranking := leaderboard.Build(totals)
	top := ranking.Top(limit)

	if err := h.enrich(ctx, top); err != nil {
		return nil, err
	}

	return &leaderboard.Board{Entries: top, TotalCount: ranking.Count()}, nil
}

// enrich добавляет имя, класс, число бейджей и серию. Три пакетных запроса
// по ID оставшихся строк, независимо от размера области.
func (h *GetLeaderboardHandler) enrich(ctx context.Context, entries []*leaderboard.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := leaderboard.StudentIDs(entries)

	roster, err := h.rosterRepo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	badgeCounts, err := h.badgeRepo.CountByStudents(ctx, ids)
	if err != nil {
		return err
	}
	streaks, err := h.streakRepo.GetMany(ctx, ids)
	if err != nil {
		return err
	}

	today := shared.DateOf(h.config.Clock.Now(), h.config.Location)
	for _, e := range entries {
		if st, ok := roster[e.StudentID]; ok {
			e.StudentName = st.DisplayName()
			e.InstitutionID = st.InstitutionID
			e.ClassID = st.ClassID
		} else {
			e.StudentName = e.StudentID.String()
		}
		e.BadgesEarned = badgeCounts[e.StudentID]
		if s, ok := streaks[e.StudentID]; ok {
			e.StreakDays = s.EffectiveCurrent(today)
		}
	}
	return nil
}

// cacheGeneration возвращает текущее поколение кеша. false - кеш выключен
// или недоступен, тогда ответ считается без кеша.
func (h *GetLeaderboardHandler) cacheGeneration(ctx context.Context) (int64, bool) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return 0, false
	}

	var gen int64
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		gen, err = h.cache.Generation(ctx)
		return err
	})
	if err != nil {
		if !circuitbreaker.IsRejected(err) {
			h.logger.Warn("leaderboard cache generation read failed", "error", err)
		}
		return 0, false
	}
	return gen, true
}

// tryGetFromCache пытается получить данные из кеша.
// Ошибки кеша не влияют на ответ: при сбое идём в базу.
func (h *GetLeaderboardHandler) tryGetFromCache(
	ctx context.Context,
	gen int64,
	scope leaderboard.Scope,
	limit int,
) (*leaderboard.Board, bool) {
	var (
		board *leaderboard.Board
		hit   bool
	)
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		board, hit, err = h.cache.GetTop(ctx, gen, scope, limit)
		return err
	})
	if err != nil {
		if !circuitbreaker.IsRejected(err) {
			h.logger.Warn("leaderboard cache read failed", "error", err)
		}
		return nil, false
	}
	return board, hit && board != nil
}

func (h *GetLeaderboardHandler) storeInCache(
	ctx context.Context,
	gen int64,
	scope leaderboard.Scope,
	limit int,
	board *leaderboard.Board,
) {
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.cache.SetTop(ctx, gen, scope, limit, board, h.config.CacheTTL)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		h.logger.Warn("leaderboard cache write failed", "error", err)
	}
}

// buildResult копирует записи вместе с картами разбивки, чтобы вызывающие
// не делили память с кешем и singleflight.
func (h *GetLeaderboardHandler) buildResult(
	query GetLeaderboardQuery,
	board *leaderboard.Board,
	fromCache bool,
) *GetLeaderboardResult {
	out := make([]leaderboard.Entry, len(board.Entries))
	for i, e := range board.Entries {
		out[i] = e.Clone()
	}
	return &GetLeaderboardResult{
		Entries:       out,
		TotalCount:    board.TotalCount,
		InstitutionID: query.InstitutionID,
		ClassID:       query.ClassID,
		Limit:         query.Limit,
		FromCache:     fromCache,
		GeneratedAt:   h.config.Clock.Now(),
	}
}
