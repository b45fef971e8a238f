package authflow

import "sync"

// ViewKind names the auth screen's presentation.
type ViewKind string

const (
	// ViewSignIn shows the sign-in form.
	ViewSignIn ViewKind = "sign_in"
	// ViewSignUp shows the sign-up form.
	ViewSignUp ViewKind = "sign_up"
	// ViewReset shows the password reset flow in place of the normal form.
	ViewReset ViewKind = "reset"
)

// View is a snapshot of the auth screen state. Step is set only when the
// reset flow is visible, so mutually exclusive presentations cannot be
// expressed.
type View struct {
	Kind ViewKind `json:"kind"`
	Step Step     `json:"step,omitempty"`
}

// ViewState holds the auth screen's presentation as a single tagged value:
// exactly one of sign-in, sign-up, or the reset flow is visible at a time.
type ViewState struct {
	flow            *ResetFlow
	onResetComplete func()

	mu   sync.Mutex
	kind ViewKind
}

// NewViewState creates a view state showing the sign-in form.
// onResetComplete is invoked when the reset flow finishes; it may be nil.
func NewViewState(flow *ResetFlow, onResetComplete func()) *ViewState {
	return &ViewState{
		flow:            flow,
		onResetComplete: onResetComplete,
		kind:            ViewSignIn,
	}
}

// Flow returns the reset flow owned by this view.
func (v *ViewState) Flow() *ResetFlow {
	return v.flow
}

// View returns the current snapshot.
func (v *ViewState) View() View {
	v.mu.Lock()
	defer v.mu.Unlock()
	view := View{Kind: v.kind}
	if v.kind == ViewReset {
		view.Step = v.flow.Step()
	}
	return view
}

// ToggleSignInUp flips between the sign-in and sign-up forms. If the reset
// flow is visible it is cancelled first; the toggle then lands on sign-up,
// since the reset flow is only reachable from sign-in.
func (v *ViewState) ToggleSignInUp() {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.kind {
	case ViewReset:
		v.flow.BackToLogin()
		v.kind = ViewSignUp
	case ViewSignIn:
		v.kind = ViewSignUp
	case ViewSignUp:
		v.kind = ViewSignIn
	}
}

// StartPasswordReset shows the reset flow in place of the normal form.
func (v *ViewState) StartPasswordReset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.kind = ViewReset
}

// CompletePasswordReset hides the reset flow and invokes the completion
// callback.
func (v *ViewState) CompletePasswordReset() {
	v.mu.Lock()
	v.kind = ViewSignIn
	v.mu.Unlock()
	if v.onResetComplete != nil {
		v.onResetComplete()
	}
}

// BackToLogin hides the reset flow, resets its step, and forces the sign-in
// presentation. It is idempotent.
func (v *ViewState) BackToLogin() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flow.BackToLogin()
	v.kind = ViewSignIn
}
