package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"testbank_backend/internal/config"
	"testbank_backend/internal/model"
	"testbank_backend/internal/repository"
	"testbank_backend/internal/util"
	"testbank_backend/pkg/logger"
	"testbank_backend/pkg/monitoring"
	"testbank_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// poolLoadTimeout 共享题池查询的上限，与单个请求的生命周期无关
const poolLoadTimeout = 10 * time.Second

// SelectCriteria 抽题条件。TopicIDs 为空表示课程下全部主题，DifficultyID 为空表示混合难度
type SelectCriteria struct {
	LessonID     uint
	TopicIDs     []uint
	DifficultyID *uint
	Count        int
}

type QuestionSelector struct {
	Lessons   *repository.LessonRepository
	Questions *repository.QuestionRepository
	Cache     PoolCache
	Policy    *config.ExamPolicy

	// IntN 返回 [0,n) 的均匀随机数，测试可替换
	IntN func(n int) int

	group singleflight.Group
}

func NewQuestionSelector(lessons *repository.LessonRepository, questions *repository.QuestionRepository, cache PoolCache, policy *config.ExamPolicy) *QuestionSelector {
	return &QuestionSelector{
		Lessons:   lessons,
		Questions: questions,
		Cache:     cache,
		Policy:    policy,
		IntN:      rand.IntN,
	}
}

// Select 从候选题池中无放回均匀抽取 Count 道题。
// 题池不足时返回全部候选题（不报错），题池为空时返回空列表。
func (s *QuestionSelector) Select(ctx context.Context, c SelectCriteria) (qs []model.Question, err error) {
	ctx, span := tracing.Start(ctx, "QuestionSelector.Select",
		attribute.Int("lesson_id", int(c.LessonID)),
		attribute.Int("count", c.Count),
	)
	defer func() { tracing.End(span, err) }()

	if c.Count <= 0 {
		return nil, util.InvalidRequest("count must be positive")
	}

	if _, err := s.Lessons.FindByID(ctx, c.LessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidLesson
		}
		return nil, util.StorageError("find lesson", err)
	}

	filter := repository.PoolFilter{
		LessonID:     c.LessonID,
		TopicIDs:     c.TopicIDs,
		DifficultyID: c.DifficultyID,
	}
	pool, err := s.pool(ctx, filter)
	if err != nil {
		return nil, err
	}

	picked := sampleIDs(pool, c.Count, s.IntN)
	if len(picked) < c.Count {
		logger.Log.Info("Question pool smaller than requested count",
			zap.Uint("lesson_id", c.LessonID),
			zap.Int("requested", c.Count),
			zap.Int("available", len(picked)),
		)
	}

	loaded, err := s.Questions.FindWithOptions(ctx, picked)
	if err != nil {
		return nil, util.StorageError("load questions", err)
	}
	byID := make(map[uint]model.Question, len(loaded))
	for _, q := range loaded {
		byID[q.ID] = q
	}

	// 按抽样顺序输出；缓存中已被删除的题目直接跳过
	qs = make([]model.Question, 0, len(picked))
	for _, id := range picked {
		if q, ok := byID[id]; ok {
			qs = append(qs, q)
		}
	}
	return qs, nil
}

func (s *QuestionSelector) pool(ctx context.Context, f repository.PoolFilter) ([]uint, error) {
	key := poolCacheKey(f)

	if s.Cache != nil {
		ids, ok, err := s.Cache.Get(ctx, key)
		switch {
		case err != nil:
			monitoring.PoolCache.WithLabelValues("error").Inc()
			logger.Log.Warn("Question pool cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			monitoring.PoolCache.WithLabelValues("hit").Inc()
			return ids, nil
		default:
			monitoring.PoolCache.WithLabelValues("miss").Inc()
		}
	}

	// 合并后的查询为多个请求共享，不能随发起者的 ctx 取消；每个调用方只在自己的 ctx 上等待
	ch := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), poolLoadTimeout)
		defer cancel()

		ids, err := s.Questions.EligibleIDs(loadCtx, f)
		if err != nil {
			return nil, util.StorageError("eligible questions", err)
		}
		if s.Cache != nil {
			ttl := config.DefaultExamConfig().PoolCacheTTL()
			if s.Policy != nil {
				ttl = s.Policy.Load().PoolCacheTTL()
			}
			if ttl > 0 {
				if err := s.Cache.Set(loadCtx, key, ids, ttl); err != nil {
					logger.Log.Warn("Question pool cache write failed", zap.String("key", key), zap.Error(err))
				}
			}
		}
		return ids, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]uint), nil
	}
}

func poolCacheKey(f repository.PoolFilter) string {
	topics := util.JoinUintIDs(f.TopicIDs)
	if topics == "" {
		topics = "all"
	}
	difficulty := "any"
	if f.DifficultyID != nil {
		difficulty = strconv.FormatUint(uint64(*f.DifficultyID), 10)
	}
	return fmt.Sprintf("exam:pool:%d:%s:%s", f.LessonID, topics, difficulty)
}

// sampleIDs 部分 Fisher-Yates 洗牌，不修改 pool
func sampleIDs(pool []uint, k int, intn func(int) int) []uint {
	ids := append([]uint(nil), pool...)
	if k > len(ids) {
		k = len(ids)
	}
	for i := 0; i < k; i++ {
		j := i + intn(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:k]
}
