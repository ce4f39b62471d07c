package model

import (
	"course_market/pkg/model"

	"github.com/shopspring/decimal"
)

// CourseStatus 课程状态
type CourseStatus string

const (
	CourseDraft     CourseStatus = "DRAFT"
	CoursePublished CourseStatus = "PUBLISHED"
	CourseArchived  CourseStatus = "ARCHIVED"
)

// Course 课程（只读，由课程管理服务维护）
type Course struct {
	model.BaseModel
	Title         string              `gorm:"size:255;not null" json:"title"`
	InstructorID  string              `gorm:"type:uuid;index" json:"instructorId"`
	Price         decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"price"`
	DiscountPrice decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"discountPrice"`
	Status        CourseStatus        `gorm:"size:20;not null" json:"status"`
}

func (Course) TableName() string {
	return "courses"
}

// IsPublished 是否已发布
func (c *Course) IsPublished() bool {
	return c.Status == CoursePublished
}

// Discount 优惠金额，只有折扣价低于原价时生效
func (c *Course) Discount() decimal.Decimal {
	if !c.DiscountPrice.Valid || c.DiscountPrice.Decimal.IsNegative() {
		return decimal.Zero
	}
	if c.DiscountPrice.Decimal.GreaterThanOrEqual(c.Price) {
		return decimal.Zero
	}
	return c.Price.Sub(c.DiscountPrice.Decimal)
}

// FinalPrice 实付价格
func (c *Course) FinalPrice() decimal.Decimal {
	return c.Price.Sub(c.Discount())
}

// IsFree 实付价格为 0 即免费课程
func (c *Course) IsFree() bool {
	return !c.FinalPrice().IsPositive()
}

// Lesson 课时
type Lesson struct {
	model.BaseModel
	CourseID string `gorm:"type:uuid;index;not null" json:"courseId"`
	Title    string `gorm:"size:255" json:"title"`
	Position int    `gorm:"not null" json:"position"`
}

func (Lesson) TableName() string {
	return "lessons"
}
