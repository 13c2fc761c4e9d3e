// Package rbac decides what an identity may do. It is pure: decisions depend
// only on the identity's role and id and the target owner id.
package rbac

import "github.com/codestation/lms-web/internal/core/domain"

// Action is something a user may attempt.
type Action string

const (
	ViewCatalog  Action = "view_catalog"
	Enroll       Action = "enroll"
	CreateCourse Action = "create_course"
	EditCourse   Action = "edit_course"
	DeleteCourse Action = "delete_course"
	ManageUsers  Action = "manage_users"
	DeleteUser   Action = "delete_user"
)

// Actions lists every known action in table order.
var Actions = []Action{ViewCatalog, Enroll, CreateCourse, EditCourse, DeleteCourse, ManageUsers, DeleteUser}

type grant uint8

const (
	deny grant = iota
	allow
	ownerOnly
	exceptSelf
)

var table = map[domain.Role]map[Action]grant{
	domain.RoleStudent: {
		ViewCatalog: allow,
		Enroll:      allow,
	},
	domain.RoleInstructor: {
		ViewCatalog:  allow,
		CreateCourse: allow,
		EditCourse:   ownerOnly,
		DeleteCourse: ownerOnly,
	},
	domain.RoleAdmin: {
		ViewCatalog:  allow,
		CreateCourse: allow,
		EditCourse:   allow,
		DeleteCourse: allow,
		ManageUsers:  allow,
		DeleteUser:   exceptSelf,
	},
	domain.RoleUnknown: {
		ViewCatalog: allow,
	},
}

// Can reports whether identity may perform action on a resource owned by
// ownerID. A nil identity is anonymous. ownerID is the course owner for
// course actions and the target user for DeleteUser; it is ignored otherwise.
func Can(identity *domain.Identity, action Action, ownerID domain.ID) bool {
	if identity == nil {
		return action == ViewCatalog
	}
	grants, ok := table[identity.Role]
	if !ok {
		grants = table[domain.RoleUnknown]
	}
	switch grants[action] {
	case allow:
		return true
	case ownerOnly:
		return ownerID != "" && ownerID == identity.ID
	case exceptSelf:
		return ownerID != "" && ownerID != identity.ID
	default:
		return false
	}
}

// RoleAllows reports whether the role could ever perform action, ignoring
// ownership. Route guards use it before the target is known.
func RoleAllows(identity *domain.Identity, action Action) bool {
	if identity == nil {
		return action == ViewCatalog
	}
	grants, ok := table[identity.Role]
	if !ok {
		grants = table[domain.RoleUnknown]
	}
	return grants[action] != deny
}

// Capabilities summarises role-level visibility for navigation.
type Capabilities struct {
	Authenticated bool `json:"authenticated"`
	ViewCatalog   bool `json:"view_catalog"`
	Enroll        bool `json:"enroll"`
	CreateCourse  bool `json:"create_course"`
	ManageUsers   bool `json:"manage_users"`
	Dashboard     bool `json:"dashboard"`
	Profile       bool `json:"profile"`
}

func CapabilitiesFor(identity *domain.Identity) Capabilities {
	return Capabilities{
		Authenticated: identity != nil,
		ViewCatalog:   Can(identity, ViewCatalog, ""),
		Enroll:        Can(identity, Enroll, ""),
		CreateCourse:  Can(identity, CreateCourse, ""),
		ManageUsers:   Can(identity, ManageUsers, ""),
		Dashboard:     identity != nil,
		Profile:       identity != nil,
	}
}

// CourseCapabilities are the per-course controls shown next to a course.
type CourseCapabilities struct {
	Enroll bool `json:"enroll"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

func CourseCapabilitiesFor(identity *domain.Identity, course domain.Course) CourseCapabilities {
	return CourseCapabilities{
		Enroll: Can(identity, Enroll, course.Instructor),
		Edit:   Can(identity, EditCourse, course.Instructor),
		Delete: Can(identity, DeleteCourse, course.Instructor),
	}
}
