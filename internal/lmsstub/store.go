package lmsstub

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/codestation/lms-web/internal/core/domain"
)

var (
	errUserExists      = errors.New("a user with that username already exists")
	errAlreadyEnrolled = errors.New("already enrolled in this course")
	errNoCourse        = errors.New("invalid course")
)

type user struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar,omitempty"`

	hash []byte
}

func (u *user) identity() *domain.Identity {
	return &domain.Identity{ID: domain.ID(strconv.Itoa(u.ID)), Role: domain.Role(u.Role)}
}

type category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type course struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     int    `json:"category"`
	CategoryName string `json:"category_name,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructor   int    `json:"instructor"`
	Thumbnail    string `json:"thumbnail,omitempty"`
}

type enrollment struct {
	ID          int       `json:"id"`
	Course      int       `json:"course"`
	CourseTitle string    `json:"course_title"`
	Student     int       `json:"student"`
	EnrolledAt  time.Time `json:"enrolled_at"`
}

type roleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

type stats struct {
	TotalUsers       int         `json:"total_users"`
	TotalCourses     int         `json:"total_courses"`
	TotalEnrollments int         `json:"total_enrollments"`
	RoleDistribution []roleCount `json:"role_distribution"`
}

// store holds the whole fake LMS in memory. Ids are sequential per table.
type store struct {
	mu          sync.RWMutex
	seq         int
	users       map[int]*user
	categories  map[int]*category
	courses     map[int]*course
	enrollments map[int]*enrollment
}

func newStore() *store {
	return &store{
		users:       make(map[int]*user),
		categories:  make(map[int]*category),
		courses:     make(map[int]*course),
		enrollments: make(map[int]*enrollment),
	}
}

func (s *store) next() int {
	s.seq++
	return s.seq
}

func (s *store) addUser(u user) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return nil, errUserExists
		}
	}
	u.ID = s.next()
	s.users[u.ID] = &u
	return &u, nil
}

func (s *store) userByName(username string) (*user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			c := *u
			return &c, true
		}
	}
	return nil, false
}

func (s *store) userByID(id int) (*user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	c := *u
	return &c, true
}

func (s *store) updateUser(id int, fn func(u *user)) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	fn(u)
	c := *u
	return &c, true
}

func (s *store) listUsers() []user {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]user, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// deleteUser also drops the user's enrollments.
func (s *store) deleteUser(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	for eid, e := range s.enrollments {
		if e.Student == id {
			delete(s.enrollments, eid)
		}
	}
	return true
}

func (s *store) addCategory(name string) *category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &category{ID: s.next(), Name: name}
	s.categories[c.ID] = c
	return c
}

func (s *store) listCategories() []category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) categoryName(id int) (string, bool) {
	c, ok := s.categories[id]
	if !ok {
		return "", false
	}
	return c.Name, true
}

// saveCourse inserts c when its id is zero and replaces it otherwise.
func (s *store) saveCourse(c course) (*course, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.categoryName(c.Category)
	if !ok {
		return nil, false
	}
	c.CategoryName = name
	if c.ID == 0 {
		c.ID = s.next()
	}
	s.courses[c.ID] = &c
	out := c
	return &out, true
}

func (s *store) courseByID(id int) (*course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, false
	}
	out := *c
	return &out, true
}

func (s *store) listCourses() []course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) deleteCourse(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[id]; !ok {
		return false
	}
	delete(s.courses, id)
	for eid, e := range s.enrollments {
		if e.Course == id {
			delete(s.enrollments, eid)
		}
	}
	return true
}

func (s *store) enroll(studentID, courseID int, now time.Time) (*enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[courseID]
	if !ok {
		return nil, errNoCourse
	}
	for _, e := range s.enrollments {
		if e.Student == studentID && e.Course == courseID {
			return nil, errAlreadyEnrolled
		}
	}
	e := &enrollment{ID: s.next(), Course: courseID, CourseTitle: c.Title, Student: studentID, EnrolledAt: now.UTC()}
	s.enrollments[e.ID] = e
	out := *e
	return &out, nil
}

func (s *store) enrollmentsOf(studentID int) []enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]enrollment, 0)
	for _, e := range s.enrollments {
		if e.Student == studentID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) stats() stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	for _, u := range s.users {
		counts[u.Role]++
	}
	dist := make([]roleCount, 0, 3)
	for _, r := range []domain.Role{domain.RoleAdmin, domain.RoleInstructor, domain.RoleStudent} {
		dist = append(dist, roleCount{Role: string(r), Count: counts[string(r)]})
	}
	return stats{
		TotalUsers:       len(s.users),
		TotalCourses:     len(s.courses),
		TotalEnrollments: len(s.enrollments),
		RoleDistribution: dist,
	}
}
