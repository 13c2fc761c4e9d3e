package domain

// ModalView is one of the authentication views the modal can show.
type ModalView string

const (
	ViewLogin          ModalView = "login"
	ViewRegister       ModalView = "register"
	ViewForgotPassword ModalView = "forgot-password"
)

// Valid reports whether v is a known view.
func (v ModalView) Valid() bool {
	switch v {
	case ViewLogin, ViewRegister, ViewForgotPassword:
		return true
	}
	return false
}

// ModalState is the process-wide auth modal state. View is only meaningful
// while IsOpen is true.
type ModalState struct {
	IsOpen bool      `json:"is_open"`
	View   ModalView `json:"view,omitempty"`
}

// AuthForm holds the in-progress inputs of the auth modal.
type AuthForm struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            Role   `json:"role"`
}

// DefaultAuthForm is the form every fresh modal view starts from.
func DefaultAuthForm() AuthForm {
	return AuthForm{Role: RoleStudent}
}
