package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/registrar-api/internal/models"
	appErrors "github.com/campushq/registrar-api/pkg/errors"
)

const (
	courseCacheKeyPrefix = "course:"
	courseCachePattern   = "course:*"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	FindRefs(ctx context.Context, ids []string) ([]models.CourseRef, error)
	ListPrerequisiteEdges(ctx context.Context) (map[string][]string, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheRecorder interface {
	RecordCacheOperation(hit bool)
}

// ScheduleSlotRequest is one weekly meeting in a course payload.
type ScheduleSlotRequest struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// CourseRequest creates or replaces a catalog entry.
type CourseRequest struct {
	Code            string                `json:"code" validate:"required,min=2,max=20"`
	Name            string                `json:"name" validate:"required,min=3,max=150"`
	CreditHours     int                   `json:"credit_hours" validate:"required,min=1,max=12"`
	Capacity        int                   `json:"capacity" validate:"required,min=1"`
	Instructor      *string               `json:"instructor,omitempty"`
	SemesterID      *string               `json:"semester_id,omitempty"`
	Schedule        []ScheduleSlotRequest `json:"schedule,omitempty" validate:"omitempty,dive"`
	PrerequisiteIDs []string              `json:"prerequisite_ids,omitempty"`
}

// CourseService manages the course catalog, including the prerequisite graph.
type CourseService struct {
	courses   courseRepository
	cache     catalogCache
	metrics   cacheRecorder
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService. cache may be nil when Redis is
// not configured.
func NewCourseService(courses courseRepository, cache catalogCache, metrics cacheRecorder, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CourseService{
		courses:   courses,
		cache:     cache,
		metrics:   metrics,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// List returns catalog entries with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return courses, pagination, nil
}

// Get returns a single course, serving from cache when possible.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	if s.cache != nil {
		var cached models.Course
		err := s.cache.Get(ctx, courseCacheKeyPrefix+id, &cached)
		if err == nil {
			s.recordCache(true)
			return &cached, nil
		}
		if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("course cache read failed", zap.String("course_id", id), zap.Error(err))
		}
		s.recordCache(false)
	}

	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, fmt.Sprintf("course %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, courseCacheKeyPrefix+id, course, s.cacheTTL); err != nil {
			s.logger.Warn("course cache write failed", zap.String("course_id", id), zap.Error(err))
		}
	}
	return course, nil
}

// Create adds a catalog entry after validating the code, schedule and
// prerequisite graph.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	course, err := s.buildCourse(ctx, "", req)
	if err != nil {
		return nil, err
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCache(ctx)
	return s.Get(ctx, course.ID)
}

// Update replaces a catalog entry. The prerequisite set is replaced wholesale
// and re-checked for cycles against the stored graph.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	existing, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, fmt.Sprintf("course %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	course, err := s.buildCourse(ctx, id, req)
	if err != nil {
		return nil, err
	}
	course.ID = existing.ID
	course.CreatedAt = existing.CreatedAt

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCache(ctx)
	return s.Get(ctx, course.ID)
}

func (s *CourseService) buildCourse(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	taken, err := s.courses.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if taken {
		return nil, appErrors.New(appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("course code %s already exists", req.Code))
	}

	schedule := make([]models.ScheduleSlot, 0, len(req.Schedule))
	for _, raw := range req.Schedule {
		slot, err := models.ParseScheduleSlot(raw.DayOfWeek, raw.StartTime, raw.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule slot")
		}
		schedule = append(schedule, slot)
	}

	prereqs, err := s.resolvePrerequisites(ctx, id, req.PrerequisiteIDs)
	if err != nil {
		return nil, err
	}

	return &models.Course{
		ID:            id,
		Code:          req.Code,
		Name:          req.Name,
		CreditHours:   req.CreditHours,
		Capacity:      req.Capacity,
		Instructor:    req.Instructor,
		SemesterID:    req.SemesterID,
		Schedule:      schedule,
		Prerequisites: prereqs,
	}, nil
}

// resolvePrerequisites verifies every referenced course exists and that the
// new edges keep the prerequisite graph acyclic.
func (s *CourseService) resolvePrerequisites(ctx context.Context, courseID string, prereqIDs []string) ([]models.CourseRef, error) {
	if len(prereqIDs) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(prereqIDs))
	unique := make([]string, 0, len(prereqIDs))
	for _, pid := range prereqIDs {
		if courseID != "" && pid == courseID {
			return nil, appErrors.Clone(appErrors.ErrPrerequisiteCycle, "a course cannot require itself")
		}
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		unique = append(unique, pid)
	}

	refs, err := s.courses.FindRefs(ctx, unique)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve prerequisites")
	}
	if len(refs) != len(unique) {
		found := make(map[string]struct{}, len(refs))
		for _, ref := range refs {
			found[ref.ID] = struct{}{}
		}
		for _, pid := range unique {
			if _, ok := found[pid]; !ok {
				return nil, appErrors.Clone(appErrors.ErrCourseNotFound, fmt.Sprintf("prerequisite course %s not found", pid))
			}
		}
	}

	if courseID != "" {
		edges, err := s.courses.ListPrerequisiteEdges(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite graph")
		}
		edges[courseID] = unique
		if cycle := findCycle(edges, courseID); cycle {
			return nil, appErrors.Clone(appErrors.ErrPrerequisiteCycle, fmt.Sprintf("prerequisites of course %s form a cycle", courseID))
		}
	}
	return refs, nil
}

// findCycle walks the prerequisite graph from start and reports whether any
// path leads back into the current traversal stack.
func findCycle(edges map[string][]string, start string) bool {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(edges))

	var visit func(node string) bool
	visit = func(node string) bool {
		switch state[node] {
		case visiting:
			return true
		case done:
			return false
		}
		state[node] = visiting
		for _, next := range edges[node] {
			if visit(next) {
				return true
			}
		}
		state[node] = done
		return false
	}
	return visit(start)
}

func (s *CourseService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, courseCachePattern); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Error(err))
	}
}

func (s *CourseService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}
