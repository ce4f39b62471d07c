package service

import (
	"context"
	"errors"
	"time"
	"course_market/internal/domain/course/model"
	"course_market/internal/domain/course/repository"
	"course_market/pkg/cache"
	"course_market/pkg/metrics"

	"go.uber.org/zap"
)

const courseCacheTTL = 5 * time.Minute

// CourseService 课程查询（收银台与学习进度使用）
type CourseService interface {
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	// GetCourseForCheckout 直接读库，下单与免费选课按当前价格和发布状态校验
	GetCourseForCheckout(ctx context.Context, id string) (*model.Course, error)
	LessonIDs(ctx context.Context, courseID string) ([]string, error)
	GetLesson(ctx context.Context, courseID, lessonID string) (*model.Lesson, error)
	Invalidate(ctx context.Context, courseID string) error
}

// cachedCourseService 读穿透缓存，缓存异常时直接查库
type cachedCourseService struct {
	repo    repository.CourseRepository
	cache   cache.CacheService
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewCourseService(repo repository.CourseRepository, c cache.CacheService, m *metrics.Collector, logger *zap.Logger) CourseService {
	return &cachedCourseService{repo: repo, cache: c, metrics: m, logger: logger}
}

func courseKey(id string) string  { return "course:" + id }
func lessonsKey(id string) string { return "course:lessons:" + id }

func (s *cachedCourseService) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if s.lookup(ctx, "course", courseKey(id), &course) {
		return &course, nil
	}

	found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, courseKey(id), found)
	return found, nil
}

// GetCourseForCheckout 读库后顺带刷新缓存
func (s *cachedCourseService) GetCourseForCheckout(ctx context.Context, id string) (*model.Course, error) {
	found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, courseKey(id), found)
	return found, nil
}

func (s *cachedCourseService) LessonIDs(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	if s.lookup(ctx, "lessons", lessonsKey(courseID), &ids) {
		return ids, nil
	}

	ids, err := s.repo.ListLessonIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, lessonsKey(courseID), ids)
	return ids, nil
}

// GetLesson 单个课时查询量小，不走缓存
func (s *cachedCourseService) GetLesson(ctx context.Context, courseID, lessonID string) (*model.Lesson, error) {
	return s.repo.GetLesson(ctx, courseID, lessonID)
}

func (s *cachedCourseService) Invalidate(ctx context.Context, courseID string) error {
	return s.cache.Delete(ctx, courseKey(courseID), lessonsKey(courseID))
}

func (s *cachedCourseService) lookup(ctx context.Context, prefix, key string, dest interface{}) bool {
	err := s.cache.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("course cache get failed", zap.String("key", key), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(prefix, err == nil)
	}
	return err == nil
}

func (s *cachedCourseService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, courseCacheTTL); err != nil {
		s.logger.Warn("course cache set failed", zap.String("key", key), zap.Error(err))
	}
}
