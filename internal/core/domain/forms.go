package domain

// Forms submitted by the client. Fields tagged required must be present
// before a request is built; everything else is optional.

type LoginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterForm struct {
	Username        string `json:"username"         validate:"required"`
	Email           string `json:"email"            validate:"required,email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"         validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            Role   `json:"role"             validate:"required,oneof=student instructor admin"`
}

type ForgotPasswordForm struct {
	Email string `json:"email" validate:"required,email"`
}

// ProfileForm edits the caller's own profile. Password is only changed when
// set, in which case ConfirmPassword must match.
type ProfileForm struct {
	Username        string `json:"username"         form:"username"         validate:"required"`
	Email           string `json:"email"            form:"email"            validate:"required,email"`
	FirstName       string `json:"first_name"       form:"first_name"`
	LastName        string `json:"last_name"        form:"last_name"`
	Password        string `json:"password"         form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"eqfield=Password"`
}

type CourseForm struct {
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    ID     `json:"category"    validate:"required"`
	Duration    string `json:"duration"`
}

// Avatar is an uploaded profile picture forwarded as multipart data.
type Avatar struct {
	Filename    string
	ContentType string
	Data        []byte
}
