package authflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicelabs/alice-chat/internal/identity"
)

// fakeProvider implements identity.Provider with overridable behavior.
type fakeProvider struct {
	isEmailRegistered  func(email string) (bool, error)
	sendRecoveryCode   func(email string) error
	verifyRecoveryCode func(email, code string) (*identity.Session, error)
	updatePassword     func(accessToken, newPassword string) error
}

func (p *fakeProvider) SignUp(_ context.Context, _, _ string) (*identity.Session, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) SignIn(_ context.Context, _, _ string) (*identity.Session, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) SignOut(_ context.Context, _ string) error {
	return errors.New("not implemented")
}

func (p *fakeProvider) UserFromToken(_ context.Context, _ string) (*identity.User, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) IsEmailRegistered(_ context.Context, email string) (bool, error) {
	if p.isEmailRegistered == nil {
		return false, errors.New("not implemented")
	}
	return p.isEmailRegistered(email)
}

func (p *fakeProvider) SendRecoveryCode(_ context.Context, email string) error {
	if p.sendRecoveryCode == nil {
		return errors.New("not implemented")
	}
	return p.sendRecoveryCode(email)
}

func (p *fakeProvider) VerifyRecoveryCode(_ context.Context, email, code string) (*identity.Session, error) {
	if p.verifyRecoveryCode == nil {
		return nil, errors.New("not implemented")
	}
	return p.verifyRecoveryCode(email, code)
}

func (p *fakeProvider) UpdatePassword(_ context.Context, accessToken, newPassword string) error {
	if p.updatePassword == nil {
		return errors.New("not implemented")
	}
	return p.updatePassword(accessToken, newPassword)
}

// registeredProvider returns a provider where the given email is registered
// and the given code verifies.
func registeredProvider(email, code, recoveryToken string) *fakeProvider {
	return &fakeProvider{
		isEmailRegistered: func(e string) (bool, error) {
			return e == email, nil
		},
		sendRecoveryCode: func(string) error { return nil },
		verifyRecoveryCode: func(e, c string) (*identity.Session, error) {
			if e != email || c != code {
				return nil, &identity.APIError{Status: 401, Message: "Token has expired or is invalid"}
			}
			return &identity.Session{AccessToken: recoveryToken}, nil
		},
		updatePassword: func(string, string) error { return nil },
	}
}

func TestRequestCode_EmptyEmail(t *testing.T) {
	flow := NewResetFlow(&fakeProvider{}, nil)

	err := flow.RequestCode(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmailRequired)
	assert.Equal(t, StepEmail, flow.Step())
}

func TestRequestCode_NotRegistered(t *testing.T) {
	provider := &fakeProvider{
		isEmailRegistered: func(string) (bool, error) { return false, nil },
	}
	flow := NewResetFlow(provider, nil)

	err := flow.RequestCode(context.Background(), "notregistered@example.com")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Equal(t, StepEmail, flow.Step())
	assert.False(t, flow.InFlight())
}

func TestRequestCode_DispatchError(t *testing.T) {
	provider := &fakeProvider{
		isEmailRegistered: func(string) (bool, error) { return true, nil },
		sendRecoveryCode: func(string) error {
			return &identity.APIError{Status: 429, Message: "over email rate limit"}
		},
	}
	flow := NewResetFlow(provider, nil)

	err := flow.RequestCode(context.Background(), "user@example.com")
	require.Error(t, err)
	assert.Equal(t, "over email rate limit", err.Error())
	assert.Equal(t, StepEmail, flow.Step())
	assert.False(t, flow.InFlight())
}

func TestRequestCode_Success(t *testing.T) {
	flow := NewResetFlow(registeredProvider("user@example.com", "123456", "tok"), nil)

	require.NoError(t, flow.RequestCode(context.Background(), "user@example.com"))
	assert.Equal(t, StepOTP, flow.Step())
	assert.Equal(t, "user@example.com", flow.Email())
	assert.False(t, flow.InFlight())
}

func TestVerifyCode_BadFormat(t *testing.T) {
	flow := NewResetFlow(registeredProvider("user@example.com", "123456", "tok"), nil)
	require.NoError(t, flow.RequestCode(context.Background(), "user@example.com"))

	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		err := flow.VerifyCode(context.Background(), code)
		assert.ErrorIs(t, err, ErrCodeFormat, "code %q", code)
		assert.Equal(t, StepOTP, flow.Step())
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	flow := NewResetFlow(registeredProvider("user@example.com", "123456", "tok"), nil)
	require.NoError(t, flow.RequestCode(context.Background(), "user@example.com"))

	err := flow.VerifyCode(context.Background(), "654321")
	require.Error(t, err)
	assert.Equal(t, "Token has expired or is invalid", err.Error())
	assert.Equal(t, StepOTP, flow.Step())
	assert.False(t, flow.InFlight())
}

func TestVerifyCode_Success(t *testing.T) {
	flow := NewResetFlow(registeredProvider("user@example.com", "123456", "tok"), nil)
	require.NoError(t, flow.RequestCode(context.Background(), "user@example.com"))

	require.NoError(t, flow.VerifyCode(context.Background(), "123456"))
	assert.Equal(t, StepPassword, flow.Step())
}

func TestVerifyCode_WrongStep(t *testing.T) {
	flow := NewResetFlow(registeredProvider("user@example.com", "123456", "tok"), nil)

	err := flow.VerifyCode(context.Background(), "123456")
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.Equal(t, StepEmail, flow.Step())
}

func TestSetNewPassword_FullFlow(t *testing.T) {
	var gotToken string
	provider := registeredProvider("user@example.com", "123456", "recovery-token")
	provider.updatePassword = func(accessToken, newPassword string) error {
		gotToken = accessToken
		return nil
	}

	completed := false
	flow := NewResetFlow(provider, func() { completed = true })

	ctx := context.Background()
	require.NoError(t, flow.RequestCode(ctx, "user@example.com"))
	require.NoError(t, flow.VerifyCode(ctx, "123456"))
	require.NoError(t, flow.SetNewPassword(ctx, "new-password"))

	assert.True(t, completed, "completion callback should run")
	assert.Equal(t, "recovery-token", gotToken, "password update should use the recovery session")
	assert.Equal(t, StepEmail, flow.Step(), "flow should reset after completion")
	assert.Empty(t, flow.Email())
}

func TestSetNewPassword_Failure(t *testing.T) {
	provider := registeredProvider("user@example.com", "123456", "tok")
	provider.updatePassword = func(string, string) error {
		return &identity.APIError{Status: 422, Message: "Password should be at least 6 characters"}
	}

	completed := false
	flow := NewResetFlow(provider, func() { completed = true })

	ctx := context.Background()
	require.NoError(t, flow.RequestCode(ctx, "user@example.com"))
	require.NoError(t, flow.VerifyCode(ctx, "123456"))

	err := flow.SetNewPassword(ctx, "short")
	require.Error(t, err)
	assert.Equal(t, "Password should be at least 6 characters", err.Error())
	assert.Equal(t, StepPassword, flow.Step())
	assert.False(t, completed)
}

func TestBackToLogin_Idempotent(t *testing.T) {
	flow := NewResetFlow(registeredProvider("user@example.com", "123456", "tok"), nil)
	require.NoError(t, flow.RequestCode(context.Background(), "user@example.com"))

	flow.BackToLogin()
	assert.Equal(t, StepEmail, flow.Step())
	assert.Empty(t, flow.Email())

	flow.BackToLogin()
	assert.Equal(t, StepEmail, flow.Step())
	assert.Empty(t, flow.Email())
	assert.False(t, flow.InFlight())
}

func TestAbandonedFlow_DiscardsLateResult(t *testing.T) {
	flow := NewResetFlow(nil, nil)
	provider := &fakeProvider{
		isEmailRegistered: func(string) (bool, error) { return true, nil },
		// The user abandons the flow while the dispatch is outstanding.
		sendRecoveryCode: func(string) error {
			flow.BackToLogin()
			return nil
		},
	}
	flow.provider = provider

	require.NoError(t, flow.RequestCode(context.Background(), "user@example.com"))
	assert.Equal(t, StepEmail, flow.Step(), "late success must not advance an abandoned flow")
	assert.Empty(t, flow.Email())
	assert.False(t, flow.InFlight())
}
