package model

import (
	"time"
	"course_market/pkg/model"
)

// EnrollmentStatus 选课状态
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentDropped   EnrollmentStatus = "DROPPED"
)

// EnrollmentSource 选课来源
type EnrollmentSource string

const (
	SourceFree  EnrollmentSource = "FREE"
	SourceOrder EnrollmentSource = "ORDER"
)

// Enrollment 选课记录，(user_id, course_id) 唯一
type Enrollment struct {
	model.BaseModel
	UserID             string           `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments_user_course" json:"userId"`
	CourseID           string           `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments_user_course" json:"courseId"`
	Status             EnrollmentStatus `gorm:"size:20;not null" json:"status"`
	ProgressPercentage int              `gorm:"not null;default:0" json:"progressPercentage"`
	Source             EnrollmentSource `gorm:"size:20;not null" json:"source"`
	OrderID            *string          `gorm:"type:uuid" json:"orderId,omitempty"`
	EnrolledAt         time.Time        `gorm:"not null" json:"enrolledAt"`
	CompletedAt        *time.Time       `json:"completedAt,omitempty"`
	LastAccessedAt     *time.Time       `json:"lastAccessedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// Entitled 是否拥有课程访问权（ACTIVE 或 COMPLETED）
func (e *Enrollment) Entitled() bool {
	return e.Status == EnrollmentActive || e.Status == EnrollmentCompleted
}

// LessonProgress 课时完成情况
type LessonProgress struct {
	model.BaseModel
	EnrollmentID string     `gorm:"type:uuid;not null;uniqueIndex:uk_lesson_progress" json:"enrollmentId"`
	LessonID     string     `gorm:"type:uuid;not null;uniqueIndex:uk_lesson_progress" json:"lessonId"`
	Completed    bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

// Percentage 完成百分比，向下取整
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return completed * 100 / total
}
