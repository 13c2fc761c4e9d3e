package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Course as returned by lms/courses/. Instructor is the owner id.
type Course struct {
	ID           ID     `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     ID     `json:"category,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructor   ID     `json:"instructor,omitempty"`
	Thumbnail    string `json:"thumbnail,omitempty"`
}

type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Enrollment struct {
	ID          ID        `json:"id"`
	Course      ID        `json:"course"`
	CourseTitle string    `json:"course_title,omitempty"`
	Student     ID        `json:"student,omitempty"`
	EnrolledAt  time.Time `json:"enrolled_at,omitempty"`
}

type RoleCount struct {
	Role  Role `json:"role"`
	Count int  `json:"count"`
}

// DashboardStats are the aggregate counts from lms/dashboard/stats/.
type DashboardStats struct {
	TotalUsers       int         `json:"total_users"`
	TotalCourses     int         `json:"total_courses"`
	TotalEnrollments int         `json:"total_enrollments"`
	RoleDistribution []RoleCount `json:"role_distribution"`
}

// UnmarshalJSON also accepts the role counts as a role_wise_users object,
// ordered by role name.
func (s *DashboardStats) UnmarshalJSON(data []byte) error {
	type plain DashboardStats
	var raw struct {
		plain
		RoleWiseUsers map[string]int `json:"role_wise_users"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = DashboardStats(raw.plain)
	if len(s.RoleDistribution) == 0 && len(raw.RoleWiseUsers) > 0 {
		for name, n := range raw.RoleWiseUsers {
			role, _ := ParseRole(name)
			s.RoleDistribution = append(s.RoleDistribution, RoleCount{Role: role, Count: n})
		}
		sort.Slice(s.RoleDistribution, func(i, j int) bool {
			return s.RoleDistribution[i].Role < s.RoleDistribution[j].Role
		})
	}
	return nil
}
