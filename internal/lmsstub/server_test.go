package lmsstub

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestServer(t *testing.T) (*httptest.Server, *clock) {
	t.Helper()
	clk := &clock{now: time.Now()}
	s := New(Config{Secret: "test", HashCost: bcrypt.MinCost, AccessTTL: time.Minute, RefreshTTL: time.Hour}, zerolog.Nop(), WithClock(clk.Now))
	if err := s.SeedDemo(); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, clk
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+"/api/"+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func loginAs(t *testing.T, srv *httptest.Server, username string) tokenPair {
	t.Helper()
	code, body := call(t, srv, http.MethodPost, "auth/login/", "", loginRequest{Username: username, Password: SeedPassword})
	if code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, code, body)
	}
	var pair tokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	return pair
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	pair := loginAs(t, srv, "student")
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("expected a token pair, got %+v", pair)
	}

	code, body := call(t, srv, http.MethodPost, "auth/login/", "", loginRequest{Username: "student", Password: "nope"})
	if code != http.StatusUnauthorized || !strings.Contains(string(body), detailBadLogin) {
		t.Fatalf("expected 401 with detail, got %d %s", code, body)
	}

	code, body = call(t, srv, http.MethodPost, "auth/login/", "", loginRequest{Username: "student"})
	if code != http.StatusBadRequest || !strings.Contains(string(body), `"password"`) {
		t.Fatalf("expected field error, got %d %s", code, body)
	}
}

func TestProfile_RequiresValidAccessToken(t *testing.T) {
	srv, clk := newTestServer(t)
	pair := loginAs(t, srv, "student")

	code, body := call(t, srv, http.MethodGet, "auth/profile/", pair.Access, nil)
	if code != http.StatusOK {
		t.Fatalf("profile: %d %s", code, body)
	}
	var me user
	if err := json.Unmarshal(body, &me); err != nil || me.Username != "student" || me.Role != "student" {
		t.Fatalf("unexpected profile %s", body)
	}

	if code, _ := call(t, srv, http.MethodGet, "auth/profile/", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := call(t, srv, http.MethodGet, "auth/profile/", pair.Refresh, nil); code != http.StatusUnauthorized {
		t.Fatalf("refresh token must not authenticate, got %d", code)
	}

	clk.Advance(2 * time.Minute)
	if code, _ := call(t, srv, http.MethodGet, "auth/profile/", pair.Access, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", code)
	}
}

func TestRefresh(t *testing.T) {
	srv, clk := newTestServer(t)
	pair := loginAs(t, srv, "student")
	clk.Advance(2 * time.Minute)

	code, body := call(t, srv, http.MethodPost, "auth/token/refresh/", "", refreshRequest{Refresh: pair.Refresh})
	if code != http.StatusOK {
		t.Fatalf("refresh: %d %s", code, body)
	}
	var next tokenPair
	_ = json.Unmarshal(body, &next)
	if code, _ := call(t, srv, http.MethodGet, "auth/profile/", next.Access, nil); code != http.StatusOK {
		t.Fatalf("refreshed token rejected: %d", code)
	}

	if code, _ := call(t, srv, http.MethodPost, "auth/token/refresh/", "", refreshRequest{Refresh: pair.Access}); code != http.StatusUnauthorized {
		t.Fatalf("access token must not refresh, got %d", code)
	}
}

func TestRegister(t *testing.T) {
	srv, _ := newTestServer(t)

	req := registerRequest{Username: "bo", Email: "bo@lms.local", Password: "pw", Role: "instructor"}
	if code, body := call(t, srv, http.MethodPost, "auth/register/", "", req); code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, body)
	}
	code, body := call(t, srv, http.MethodPost, "auth/register/", "", req)
	if code != http.StatusBadRequest || !strings.Contains(string(body), "already exists") {
		t.Fatalf("expected duplicate error, got %d %s", code, body)
	}

	req.Username, req.Role = "cy", "superuser"
	if code, _ := call(t, srv, http.MethodPost, "auth/register/", "", req); code != http.StatusBadRequest {
		t.Fatalf("expected invalid role to be rejected, got %d", code)
	}
}

func TestCourses_OwnershipAndRoles(t *testing.T) {
	srv, _ := newTestServer(t)
	instructor := loginAs(t, srv, "instructor").Access
	student := loginAs(t, srv, "student").Access
	admin := loginAs(t, srv, "admin").Access

	code, body := call(t, srv, http.MethodGet, "lms/categories/", student, nil)
	if code != http.StatusOK {
		t.Fatalf("categories: %d", code)
	}
	var cats []category
	_ = json.Unmarshal(body, &cats)

	newCourse := map[string]any{"title": "Intro", "description": "d", "category": cats[1].ID}
	if code, _ := call(t, srv, http.MethodPost, "lms/courses/", student, newCourse); code != http.StatusForbidden {
		t.Fatalf("student created a course: %d", code)
	}
	code, body = call(t, srv, http.MethodPost, "lms/courses/", instructor, newCourse)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, body)
	}
	var created course
	_ = json.Unmarshal(body, &created)
	if created.CategoryName != cats[1].Name {
		t.Fatalf("expected category name %q, got %q", cats[1].Name, created.CategoryName)
	}

	// Another instructor may not touch it.
	other := registerAndLogin(t, srv, "other", "instructor")
	path := "lms/courses/" + itoa(created.ID) + "/"
	if code, _ := call(t, srv, http.MethodDelete, path, other, nil); code != http.StatusForbidden {
		t.Fatalf("non-owner deleted a course: %d", code)
	}
	update := map[string]any{"title": "Intro 2", "description": "d", "category": cats[1].ID}
	if code, _ := call(t, srv, http.MethodPut, path, instructor, update); code != http.StatusOK {
		t.Fatalf("owner update: %d", code)
	}
	if code, _ := call(t, srv, http.MethodDelete, path, admin, nil); code != http.StatusNoContent {
		t.Fatalf("admin delete: %d", code)
	}
	if code, _ := call(t, srv, http.MethodGet, path, admin, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
}

func TestEnrollAndStats(t *testing.T) {
	srv, _ := newTestServer(t)
	student := loginAs(t, srv, "student").Access
	instructor := loginAs(t, srv, "instructor").Access

	_, body := call(t, srv, http.MethodGet, "lms/courses/", student, nil)
	var courses []course
	_ = json.Unmarshal(body, &courses)
	if len(courses) == 0 {
		t.Fatal("expected a seeded course")
	}

	enroll := map[string]any{"course": courses[0].ID}
	if code, _ := call(t, srv, http.MethodPost, "lms/enrollments/", instructor, enroll); code != http.StatusForbidden {
		t.Fatalf("instructor enrolled: %d", code)
	}
	if code, body := call(t, srv, http.MethodPost, "lms/enrollments/", student, enroll); code != http.StatusCreated {
		t.Fatalf("enroll: %d %s", code, body)
	}
	code, body := call(t, srv, http.MethodPost, "lms/enrollments/", student, enroll)
	if code != http.StatusBadRequest || !strings.Contains(string(body), "non_field_errors") {
		t.Fatalf("expected duplicate enrollment error, got %d %s", code, body)
	}

	_, body = call(t, srv, http.MethodGet, "lms/enrollments/", student, nil)
	var mine []enrollment
	_ = json.Unmarshal(body, &mine)
	if len(mine) != 1 || mine[0].CourseTitle != courses[0].Title {
		t.Fatalf("unexpected enrollments %s", body)
	}

	_, body = call(t, srv, http.MethodGet, "lms/dashboard/stats/", student, nil)
	var st stats
	_ = json.Unmarshal(body, &st)
	if st.TotalUsers != 3 || st.TotalCourses != 1 || st.TotalEnrollments != 1 || len(st.RoleDistribution) != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestUsers_AdminOnlyAndNoSelfDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := loginAs(t, srv, "admin").Access
	student := loginAs(t, srv, "student").Access

	if code, _ := call(t, srv, http.MethodGet, "auth/users/", student, nil); code != http.StatusForbidden {
		t.Fatalf("student listed users: %d", code)
	}
	_, body := call(t, srv, http.MethodGet, "auth/users/", admin, nil)
	var users []user
	_ = json.Unmarshal(body, &users)

	ids := map[string]int{}
	for _, u := range users {
		ids[u.Username] = u.ID
	}
	if code, _ := call(t, srv, http.MethodDelete, "auth/users/"+itoa(ids["admin"])+"/", admin, nil); code != http.StatusBadRequest {
		t.Fatalf("admin deleted self: %d", code)
	}
	if code, _ := call(t, srv, http.MethodDelete, "auth/users/"+itoa(ids["student"])+"/", admin, nil); code != http.StatusNoContent {
		t.Fatalf("delete student: %d", code)
	}
}

func TestUpdateProfile_Multipart(t *testing.T) {
	srv, _ := newTestServer(t)
	token := loginAs(t, srv, "student").Access

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("username", "student")
	_ = mw.WriteField("email", "new@lms.local")
	_ = mw.WriteField("first_name", "Stu")
	fw, _ := mw.CreateFormFile("avatar", "me.png")
	_, _ = fw.Write([]byte("png"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/auth/profile/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("update: %d %s", resp.StatusCode, b)
	}
	var me user
	_ = json.NewDecoder(resp.Body).Decode(&me)
	if me.Email != "new@lms.local" || me.FirstName != "Stu" || me.Avatar != "/media/avatars/me.png" {
		t.Fatalf("unexpected profile %+v", me)
	}
}

func registerAndLogin(t *testing.T, srv *httptest.Server, username, role string) string {
	t.Helper()
	req := registerRequest{Username: username, Email: username + "@lms.local", Password: SeedPassword, Role: role}
	if code, body := call(t, srv, http.MethodPost, "auth/register/", "", req); code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, code, body)
	}
	return loginAs(t, srv, username).Access
}

func itoa(n int) string { return strconv.Itoa(n) }
