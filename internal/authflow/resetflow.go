// Package authflow implements the password reset flow and the auth screen
// view state.
package authflow

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/alicelabs/alice-chat/internal/identity"
)

// Step is the current position in the password reset flow.
type Step string

const (
	// StepEmail collects the account email and dispatches a recovery code.
	StepEmail Step = "email"
	// StepOTP collects the emailed one-time code.
	StepOTP Step = "otp"
	// StepPassword collects the new password.
	StepPassword Step = "password"
)

// CodeLength is the fixed length of the one-time recovery code.
const CodeLength = 6

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

var (
	// ErrNotRegistered is surfaced when the identity provider reports no
	// account for the requested email.
	ErrNotRegistered = errors.New("This email is not registered in our system.")
	// ErrInFlight is returned when a step is re-submitted while its remote
	// call is still outstanding.
	ErrInFlight = errors.New("a request is already in progress")
	// ErrEmailRequired is surfaced when the email field is empty.
	ErrEmailRequired = errors.New("email is required")
	// ErrCodeFormat is surfaced when the code is not a 6-digit number.
	ErrCodeFormat = errors.New("the code must be a 6-digit number")
	// ErrPasswordRequired is surfaced when the new password is empty.
	ErrPasswordRequired = errors.New("password is required")
	// ErrWrongStep is returned when an operation is invoked out of order.
	ErrWrongStep = errors.New("operation not valid for the current step")
)

// ResetFlow drives the three-step password reset: email -> otp -> password.
// The step only advances on verified success of the corresponding provider
// call; any failure surfaces a user-visible error and leaves the step
// unchanged. BackToLogin returns the flow to its initial state at any point.
type ResetFlow struct {
	provider  identity.Provider
	onSuccess func()

	mu            sync.Mutex
	step          Step
	email         string
	inFlight      bool
	recoveryToken string
	// gen invalidates an in-flight call's result after BackToLogin, so a
	// late resolution never advances a flow the user already abandoned.
	gen uint64
}

// NewResetFlow creates a flow at the email step. onSuccess is invoked once
// the password has been updated; it may be nil.
func NewResetFlow(provider identity.Provider, onSuccess func()) *ResetFlow {
	return &ResetFlow{
		provider:  provider,
		onSuccess: onSuccess,
		step:      StepEmail,
	}
}

// Step returns the current step.
func (f *ResetFlow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// InFlight reports whether a remote call is outstanding.
func (f *ResetFlow) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Email returns the email entered at the first step.
func (f *ResetFlow) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email
}

// begin validates the step and marks the flow in-flight, returning the
// generation to check on completion.
func (f *ResetFlow) begin(step Step) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != step {
		return 0, ErrWrongStep
	}
	if f.inFlight {
		return 0, ErrInFlight
	}
	f.inFlight = true
	return f.gen, nil
}

// finish clears the in-flight flag and, when the flow was not reset in the
// meantime, applies the state transition. It reports whether the result was
// applied; a false return means the user abandoned the flow while the call
// was outstanding and its result must be discarded.
func (f *ResetFlow) finish(gen uint64, apply func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return false
	}
	f.inFlight = false
	if apply != nil {
		apply()
	}
	return true
}

// RequestCode verifies the email is registered and asks the provider to
// dispatch a one-time recovery code to it. On success the flow advances to
// the otp step.
func (f *ResetFlow) RequestCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}

	gen, err := f.begin(StepEmail)
	if err != nil {
		return err
	}

	registered, err := f.provider.IsEmailRegistered(ctx, email)
	if err == nil && !registered {
		err = ErrNotRegistered
	}
	if err == nil {
		err = f.provider.SendRecoveryCode(ctx, email)
	}

	if err != nil {
		f.finish(gen, nil)
		return err
	}
	f.finish(gen, func() {
		f.email = email
		f.step = StepOTP
	})
	return nil
}

// VerifyCode validates the one-time code against the provider for the
// recovery purpose. On success the flow advances to the password step and
// holds on to the recovery session.
func (f *ResetFlow) VerifyCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return ErrCodeFormat
	}

	gen, err := f.begin(StepOTP)
	if err != nil {
		return err
	}

	session, err := f.provider.VerifyRecoveryCode(ctx, f.Email(), code)
	if err != nil {
		f.finish(gen, nil)
		return err
	}
	f.finish(gen, func() {
		f.recoveryToken = session.AccessToken
		f.step = StepPassword
	})
	return nil
}

// SetNewPassword updates the password of the recovery-authenticated user.
// On success the completion callback runs and the flow resets to its
// initial state.
func (f *ResetFlow) SetNewPassword(ctx context.Context, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}

	gen, err := f.begin(StepPassword)
	if err != nil {
		return err
	}

	f.mu.Lock()
	token := f.recoveryToken
	f.mu.Unlock()

	if err := f.provider.UpdatePassword(ctx, token, newPassword); err != nil {
		f.finish(gen, nil)
		return err
	}
	if f.finish(gen, f.reset) && f.onSuccess != nil {
		f.onSuccess()
	}
	return nil
}

// BackToLogin returns the flow to the email step and clears all fields.
// It is idempotent and invalidates any outstanding call.
func (f *ResetFlow) BackToLogin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.inFlight = false
	f.reset()
}

// reset restores the initial state. Callers must hold f.mu.
func (f *ResetFlow) reset() {
	f.step = StepEmail
	f.email = ""
	f.recoveryToken = ""
}
