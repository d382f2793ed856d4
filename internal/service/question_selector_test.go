package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"testbank_backend/internal/repository"
	"testbank_backend/internal/testutil"
	"testbank_backend/internal/util"

	"gorm.io/gorm"
)

func TestSelectReturnsDistinctQuestionsFromPool(t *testing.T) {
	h := newHarness(t)
	lesson, qs := h.seedLesson(t, 10)

	pool := make(map[uint]bool, len(qs))
	for _, q := range qs {
		pool[q.ID] = true
	}

	for count := 1; count <= len(qs); count++ {
		got, err := h.selector.Select(context.Background(), SelectCriteria{LessonID: lesson.ID, Count: count})
		if err != nil {
			t.Fatalf("Select(count=%d): %v", count, err)
		}
		if len(got) != count {
			t.Fatalf("Select(count=%d): got %d questions", count, len(got))
		}
		seen := make(map[uint]bool, count)
		for _, q := range got {
			if !pool[q.ID] {
				t.Fatalf("question %d is not in the eligible pool", q.ID)
			}
			if seen[q.ID] {
				t.Fatalf("question %d selected twice", q.ID)
			}
			seen[q.ID] = true
			if len(q.Options) != 4 {
				t.Fatalf("question %d: expected 4 options, got %d", q.ID, len(q.Options))
			}
		}
	}
}

func TestSelectReturnsWholePoolWhenCountExceedsIt(t *testing.T) {
	h := newHarness(t)
	lesson, _ := h.seedLesson(t, 10)

	got, err := h.selector.Select(context.Background(), SelectCriteria{LessonID: lesson.ID, Count: 15})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected all 10 eligible questions, got %d", len(got))
	}
}

func TestSelectEmptyPoolIsNotAnError(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.Lesson(t, h.db, 1, "Empty")

	got, err := h.selector.Select(context.Background(), SelectCriteria{LessonID: lesson.ID, Count: 5})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no questions, got %d", len(got))
	}
}

func TestSelectUnknownLesson(t *testing.T) {
	h := newHarness(t)

	_, err := h.selector.Select(context.Background(), SelectCriteria{LessonID: 999, Count: 5})
	if !errors.Is(err, util.ErrInvalidLesson) {
		t.Fatalf("expected ErrInvalidLesson, got %v", err)
	}
}

func TestSelectRejectsNonPositiveCount(t *testing.T) {
	h := newHarness(t)
	lesson, _ := h.seedLesson(t, 3)

	_, err := h.selector.Select(context.Background(), SelectCriteria{LessonID: lesson.ID, Count: 0})
	if !errors.Is(err, util.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSelectHonorsTopicAndDifficultyFilters(t *testing.T) {
	h := newHarness(t)
	ds := testutil.Difficulties(t, h.db)
	easy, hard := ds[0], ds[2]

	lesson := testutil.Lesson(t, h.db, 1, "Geometry")
	angles := testutil.Topic(t, h.db, lesson.ID, "Angles")
	circles := testutil.Topic(t, h.db, lesson.ID, "Circles")
	testutil.Questions(t, h.db, angles.ID, easy.ID, 3)
	testutil.Questions(t, h.db, angles.ID, hard.ID, 2)
	testutil.Questions(t, h.db, circles.ID, easy.ID, 4)

	other := testutil.Lesson(t, h.db, 1, "History")
	wars := testutil.Topic(t, h.db, other.ID, "Wars")
	testutil.Questions(t, h.db, wars.ID, easy.ID, 5)

	cases := []struct {
		name       string
		topics     []uint
		difficulty *uint
		want       int
	}{
		{"whole lesson", nil, nil, 9},
		{"one topic", []uint{angles.ID}, nil, 5},
		{"one topic one difficulty", []uint{angles.ID}, &hard.ID, 2},
		{"difficulty only", nil, &easy.ID, 7},
		{"foreign topic ignored", []uint{wars.ID}, nil, 0},
		{"mixed topics", []uint{circles.ID, wars.ID}, nil, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := h.selector.Select(context.Background(), SelectCriteria{
				LessonID:     lesson.ID,
				TopicIDs:     tc.topics,
				DifficultyID: tc.difficulty,
				Count:        50,
			})
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("expected %d questions, got %d", tc.want, len(got))
			}
			for _, q := range got {
				if tc.difficulty != nil && q.DifficultyID != *tc.difficulty {
					t.Fatalf("question %d has difficulty %d", q.ID, q.DifficultyID)
				}
				if q.TopicID == wars.ID {
					t.Fatalf("question %d belongs to another lesson", q.ID)
				}
			}
		})
	}
}

type memoryPoolCache struct {
	entries map[string][]uint
	gets    int
	sets    int
}

func (c *memoryPoolCache) Get(ctx context.Context, key string) ([]uint, bool, error) {
	c.gets++
	ids, ok := c.entries[key]
	return ids, ok, nil
}

func (c *memoryPoolCache) Set(ctx context.Context, key string, ids []uint, ttl time.Duration) error {
	c.sets++
	c.entries[key] = ids
	return nil
}

func TestSelectUsesPoolCache(t *testing.T) {
	h := newHarness(t)
	lesson, qs := h.seedLesson(t, 6)

	cache := &memoryPoolCache{entries: map[string][]uint{}}
	h.selector.Cache = cache

	for i := 0; i < 3; i++ {
		got, err := h.selector.Select(context.Background(), SelectCriteria{LessonID: lesson.ID, Count: 6})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if len(got) != 6 {
			t.Fatalf("expected 6 questions, got %d", len(got))
		}
	}
	if cache.gets != 3 || cache.sets != 1 {
		t.Fatalf("expected 3 gets and 1 set, got %d gets and %d sets", cache.gets, cache.sets)
	}

	// 缓存中的题目被删除后直接跳过
	if err := h.db.Delete(&qs[0]).Error; err != nil {
		t.Fatalf("delete question: %v", err)
	}
	got, err := h.selector.Select(context.Background(), SelectCriteria{LessonID: lesson.ID, Count: 6})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected stale cached id to be skipped, got %d questions", len(got))
	}
}

func TestSampleIDsDoesNotModifyPool(t *testing.T) {
	pool := []uint{1, 2, 3, 4, 5}
	last := func(n int) int { return n - 1 }

	got := sampleIDs(pool, 3, last)
	if len(got) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(got))
	}
	want := []uint{5, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample[%d] = %d, want %d (sample %v)", i, got[i], want[i], got)
		}
	}
	for i, id := range []uint{1, 2, 3, 4, 5} {
		if pool[i] != id {
			t.Fatalf("pool modified: %v", pool)
		}
	}

	if all := sampleIDs(pool, 10, last); len(all) != 5 {
		t.Fatalf("expected whole pool, got %v", all)
	}
}

func TestPoolCacheKey(t *testing.T) {
	hard := uint(3)
	cases := []struct {
		f    repository.PoolFilter
		want string
	}{
		{repository.PoolFilter{LessonID: 7}, "exam:pool:7:all:any"},
		{repository.PoolFilter{LessonID: 7, TopicIDs: []uint{9, 2, 9}}, "exam:pool:7:2,9:any"},
		{repository.PoolFilter{LessonID: 7, DifficultyID: &hard}, "exam:pool:7:all:3"},
	}
	for _, tc := range cases {
		if got := poolCacheKey(tc.f); got != tc.want {
			t.Fatalf("poolCacheKey(%+v) = %q, want %q", tc.f, got, tc.want)
		}
	}
}

func TestSharedPoolLoadSurvivesCallerCancellation(t *testing.T) {
	h := newHarness(t)
	lesson, _ := h.seedLesson(t, 6)

	// 让题池查询（唯一带 JOIN 的查询）变慢，使两个调用方合并到同一次加载
	err := h.db.Callback().Query().Before("gorm:query").Register("test:slow_pool", func(db *gorm.DB) {
		if len(db.Statement.Joins) > 0 {
			time.Sleep(300 * time.Millisecond)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	criteria := SelectCriteria{LessonID: lesson.ID, Count: 6}
	var (
		wg         sync.WaitGroup
		errA, errB error
		gotB       int
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, errA = h.selector.Select(ctx, criteria)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		qs, err := h.selector.Select(context.Background(), criteria)
		errB, gotB = err, len(qs)
	}()
	wg.Wait()

	if !errors.Is(errA, context.DeadlineExceeded) {
		t.Fatalf("timed-out caller: expected context.DeadlineExceeded, got %v", errA)
	}
	if errB != nil {
		t.Fatalf("background caller failed because another caller timed out: %v", errB)
	}
	if gotB != 6 {
		t.Fatalf("background caller: expected 6 questions, got %d", gotB)
	}
}
