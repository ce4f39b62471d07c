package handler

import (
	"course_market/internal/domain/enrollment/service"
	"course_market/internal/pkg/common"
	"course_market/pkg/response"
	"course_market/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type EnrollmentHandler struct {
	service service.EnrollmentService
	tracker service.ProgressTracker
}

func NewEnrollmentHandler(s service.EnrollmentService, t service.ProgressTracker) *EnrollmentHandler {
	return &EnrollmentHandler{service: s, tracker: t}
}

// EnrollFree 免费课程选课
// @Summary 免费课程选课
// @Tags Enrollment
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 201 {object} response.Response{data=model.Enrollment}
// @Router /enrollments/free/{courseId} [post]
func (h *EnrollmentHandler) EnrollFree(c *gin.Context) {
	e, err := h.service.EnrollFree(c.Request.Context(), common.CurrentUserID(c), c.Param("courseId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Created(c, e)
}

// List 我的课程
// @Summary 我的选课列表
// @Tags Enrollment
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.ListEnrollments(c.Request.Context(), common.CurrentUserID(c), p)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, result)
}

// Get 单门课程的选课与进度，同时刷新最近访问时间
// @Summary 获取选课详情
// @Tags Enrollment
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Response{data=model.Enrollment}
// @Router /enrollments/{courseId} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	userID := common.CurrentUserID(c)
	courseID := c.Param("courseId")

	e, err := h.service.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	_ = h.tracker.Touch(ctx, userID, courseID)
	response.Success(c, e)
}

// CompleteLesson 完成课时
// @Summary 标记课时完成
// @Tags Enrollment
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "Course ID"
// @Param lessonId path string true "Lesson ID"
// @Success 200 {object} response.Response{data=model.Enrollment}
// @Router /enrollments/{courseId}/lessons/{lessonId}/complete [post]
func (h *EnrollmentHandler) CompleteLesson(c *gin.Context) {
	e, err := h.tracker.CompleteLesson(c.Request.Context(), common.CurrentUserID(c), c.Param("courseId"), c.Param("lessonId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, e)
}
