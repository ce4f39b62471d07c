package handler

import (
	"course_market/internal/domain/course/service"
	"course_market/internal/pkg/common"
	"course_market/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CourseHandler struct {
	service service.CourseService
}

func NewCourseHandler(s service.CourseService) *CourseHandler {
	return &CourseHandler{service: s}
}

// PriceQuote 下单前的价格展示
type PriceQuote struct {
	CourseID       string          `json:"courseId"`
	Title          string          `json:"title"`
	OriginalPrice  decimal.Decimal `json:"originalPrice"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalPrice     decimal.Decimal `json:"finalPrice"`
	Free           bool            `json:"free"`
	Purchasable    bool            `json:"purchasable"`
}

// GetQuote 课程价格
// @Summary 获取课程价格
// @Tags Course
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Response{data=PriceQuote}
// @Router /courses/{id}/quote [get]
func (h *CourseHandler) GetQuote(c *gin.Context) {
	course, err := h.service.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response.Success(c, PriceQuote{
		CourseID:       course.ID,
		Title:          course.Title,
		OriginalPrice:  course.Price,
		DiscountAmount: course.Discount(),
		FinalPrice:     course.FinalPrice(),
		Free:           course.IsFree(),
		Purchasable:    course.IsPublished(),
	})
}
