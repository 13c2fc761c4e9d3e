package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/core/validation"
)

// User-facing copy of the auth modal.
const (
	msgWelcomeBack       = "Welcome back!"
	msgLoginFailed       = "Login failed. Please check your credentials."
	msgPasswordsMismatch = "Passwords do not match"
	msgRegistered        = "Registration successful! Please login."
	msgRegisterFailed    = "Registration failed: "
	msgResetLinkSent     = "If an account exists, a reset link has been sent."
	msgResetFailed       = "Failed to send reset email."
	msgUnknownError      = "Unknown error"
)

// AuthFlow drives the auth modal: it submits forms through the session store,
// reports the outcome on the bus and moves the modal along.
type AuthFlow struct {
	session *SessionStore
	modal   *ModalCoordinator
	bus     ports.Notifier
	log     zerolog.Logger
}

func NewAuthFlow(session *SessionStore, modal *ModalCoordinator, bus ports.Notifier, log zerolog.Logger) *AuthFlow {
	return &AuthFlow{session: session, modal: modal, bus: bus, log: log}
}

// SubmitLogin closes the modal on success. On failure the modal stays open
// and exactly one error notification is shown.
func (f *AuthFlow) SubmitLogin(ctx context.Context, form domain.LoginForm) error {
	if err := validation.Struct(form); err != nil {
		f.bus.Show(detailOf(err), domain.KindError)
		return err
	}
	if err := f.session.Login(ctx, form.Username, form.Password); err != nil {
		f.log.Warn().Err(err).Str("username", form.Username).Msg("login failed")
		f.bus.Show(msgLoginFailed, domain.KindError)
		return err
	}
	f.bus.Show(msgWelcomeBack, domain.KindSuccess)
	f.modal.Close()
	return nil
}

// SubmitRegister never logs the caller in. Success moves the modal to login.
func (f *AuthFlow) SubmitRegister(ctx context.Context, form domain.RegisterForm) error {
	if form.Password != form.ConfirmPassword {
		f.bus.Show(msgPasswordsMismatch, domain.KindError)
		return &domain.ValidationError{Field: "confirm_password", Detail: msgPasswordsMismatch}
	}
	if err := f.session.Register(ctx, form); err != nil {
		f.log.Warn().Err(err).Str("username", form.Username).Msg("registration failed")
		f.bus.Show(msgRegisterFailed+registerDetail(err), domain.KindError)
		return err
	}
	f.bus.Show(msgRegistered, domain.KindSuccess)
	return f.modal.Open(domain.ViewLogin)
}

func (f *AuthFlow) SubmitForgotPassword(ctx context.Context, form domain.ForgotPasswordForm) error {
	if err := f.session.RequestPasswordReset(ctx, form); err != nil {
		f.log.Warn().Err(err).Msg("password reset request failed")
		f.bus.Show(msgResetFailed, domain.KindError)
		return err
	}
	f.bus.Show(msgResetLinkSent, domain.KindSuccess)
	return f.modal.Open(domain.ViewLogin)
}

func (f *AuthFlow) Logout(ctx context.Context) error {
	f.modal.Close()
	return f.session.Logout(ctx)
}

func registerDetail(err error) string {
	if ve, ok := domain.IsValidation(err); ok && ve.Detail != "" {
		return ve.Detail
	}
	var re *domain.RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return msgUnknownError
}

func detailOf(err error) string {
	if ve, ok := domain.IsValidation(err); ok {
		return ve.Detail
	}
	return err.Error()
}
