package account

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/market"
	"github.com/alanjade/growthctl/internal/state"
)

type request struct {
	Method string
	Path   string
	Body   map[string]string
}

type stub struct {
	status int
	body   string
}

type recorder struct {
	mu       sync.Mutex
	requests []request
}

func (r *recorder) all() []request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]request(nil), r.requests...)
}

func newTestService(t *testing.T, stubs map[string]stub) (*Service, *recorder, state.Store) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := request{Method: r.Method, Path: r.URL.Path}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &req.Body)
		}
		rec.mu.Lock()
		rec.requests = append(rec.requests, req)
		rec.mu.Unlock()

		st, ok := stubs[r.Method+" "+r.URL.Path]
		if !ok {
			st = stub{body: `{}`}
		}
		if st.status == 0 {
			st.status = http.StatusOK
		}
		w.WriteHeader(st.status)
		_, _ = w.Write([]byte(st.body))
	}))
	t.Cleanup(srv.Close)
	store := state.NewMemoryStore()
	return New(api.New(srv.URL), store), rec, store
}

func TestPasswordChecks(t *testing.T) {
	assert.Empty(t, FailedChecks("Str0ng!pass"))
	assert.Equal(t, "Strong", Strength("Str0ng!pass"))

	failed := FailedChecks("abc")
	assert.Equal(t, []string{
		"At least 8 characters",
		"One uppercase letter",
		"One number",
		"One special character (!@#$%^&*)",
	}, failed)
	assert.Equal(t, "Too weak", Strength("abc"))
	assert.Equal(t, "Too weak", Strength(""))
	assert.Equal(t, "Fair", Strength("abcdefgH"))
}

func TestRegisterRemembersPendingEmail(t *testing.T) {
	svc, rec, store := newTestService(t, nil)

	msg, err := svc.Register(context.Background(), RegisterInput{
		Name: " Ada ", Email: " Ada@Example.com ", Password: "Str0ng!pass", PasswordConfirmation: "Str0ng!pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "Registration successful! Please verify your email.", msg)
	assert.Equal(t, "ada@example.com", state.GetString(store, state.KeyPendingEmail))

	reqs := rec.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/register", reqs[0].Path)
	assert.Equal(t, "Ada", reqs[0].Body["name"])
	assert.Equal(t, "Str0ng!pass", reqs[0].Body["password_confirmation"])
}

func TestRegisterValidation(t *testing.T) {
	svc, rec, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "x", PasswordConfirmation: "x"})
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.c", Password: "Str0ng!pass", PasswordConfirmation: "other"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Email: "a@b.c", Password: "weakpass", PasswordConfirmation: "weakpass"})
	var weak *WeakPasswordError
	require.ErrorAs(t, err, &weak)
	assert.Contains(t, weak.Failed, "One uppercase letter")
	assert.Empty(t, rec.all())
}

func TestRegisterServerValidation(t *testing.T) {
	svc, _, store := newTestService(t, map[string]stub{
		"POST /register": {status: http.StatusUnprocessableEntity, body: `{"errors":{"email":["The email has already been taken."]}}`},
	})
	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "A", Email: "a@b.c", Password: "Str0ng!pass", PasswordConfirmation: "Str0ng!pass",
	})
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, "The email has already been taken.", api.Message(err, ""))
	assert.Empty(t, state.GetString(store, state.KeyPendingEmail))
}

func TestVerifyEmailUsesPendingAddress(t *testing.T) {
	svc, rec, store := newTestService(t, map[string]stub{
		"POST /email/verify/code": {body: `{"message":"Email verified"}`},
	})
	require.NoError(t, store.Set(state.KeyPendingEmail, "ada@example.com"))

	_, err := svc.VerifyEmail(context.Background(), "", "12345")
	assert.ErrorIs(t, err, ErrCodeFormat)

	msg, err := svc.VerifyEmail(context.Background(), "", "123456")
	require.NoError(t, err)
	assert.Equal(t, "Email verified", msg)
	assert.Empty(t, svc.PendingEmail())

	reqs := rec.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]string{"email": "ada@example.com", "verification_code": "123456"}, reqs[0].Body)
}

func TestVerifyEmailWithoutAddress(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.VerifyEmail(context.Background(), "", "123456")
	assert.ErrorIs(t, err, ErrEmailRequired)
	_, err = svc.ResendVerification(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestResendVerification(t *testing.T) {
	svc, rec, _ := newTestService(t, nil)
	msg, err := svc.ResendVerification(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Verification code resent.", msg)
	assert.Equal(t, "/email/resend-verification", rec.all()[0].Path)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, rec, store := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ResetPassword(ctx, "newpassword", "newpassword")
	require.ErrorIs(t, err, ErrNotVerified)

	_, err = svc.RequestResetCode(ctx, "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", state.GetString(store, state.KeyResetEmail))

	_, err = svc.ResetPassword(ctx, "newpassword", "newpassword")
	require.ErrorIs(t, err, ErrNotVerified, "code not verified yet")

	_, err = svc.VerifyResetCode(ctx, "", "654321")
	require.NoError(t, err)
	assert.Equal(t, "true", state.GetString(store, state.KeyOTPVerified))

	_, err = svc.ResetPassword(ctx, "short", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	_, err = svc.ResetPassword(ctx, "newpassword", "different")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = svc.ResetPassword(ctx, "newpassword", "newpassword")
	require.NoError(t, err)
	assert.Empty(t, state.GetString(store, state.KeyResetEmail))
	assert.Empty(t, state.GetString(store, state.KeyOTPVerified))

	reqs := rec.all()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/password/reset/verify", reqs[1].Path)
	assert.Equal(t, "654321", reqs[1].Body["reset_code"])
	assert.Equal(t, "/password/reset", reqs[2].Path)
	assert.Equal(t, "ada@example.com", reqs[2].Body["email"])
}

func TestVerifyResetCodeFailureKeepsFlowUnverified(t *testing.T) {
	svc, _, store := newTestService(t, map[string]stub{
		"POST /password/reset/verify": {status: http.StatusBadRequest, body: `{"message":"Invalid or expired code"}`},
	})
	require.NoError(t, store.Set(state.KeyResetEmail, "ada@example.com"))
	_, err := svc.VerifyResetCode(context.Background(), "", "111111")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired code", api.Message(err, ""))
	assert.Empty(t, state.GetString(store, state.KeyOTPVerified))
}

func TestChangePassword(t *testing.T) {
	svc, rec, _ := newTestService(t, map[string]stub{
		"POST /user/change-password": {status: http.StatusBadRequest, body: `{"error":"Current password is incorrect"}`},
	})
	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, "old", "newpassword", "newpasswor")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Empty(t, rec.all())

	_, err = svc.ChangePassword(ctx, "old", "newpassword", "newpassword")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", api.Message(err, "Failed to change password"))
	assert.Equal(t, "newpassword", rec.all()[0].Body["new_password_confirmation"])
}

func TestPinOperations(t *testing.T) {
	svc, rec, _ := newTestService(t, map[string]stub{
		"POST /pin/set": {body: `{"message":"PIN set"}`},
	})
	ctx := context.Background()

	_, err := svc.SetPin(ctx, "12a4", "12a4")
	assert.ErrorIs(t, err, market.ErrInvalidPin)
	_, err = svc.SetPin(ctx, "1234", "4321")
	assert.ErrorIs(t, err, ErrPinMismatch)
	_, err = svc.UpdatePin(ctx, "", "1234", "1234")
	assert.ErrorIs(t, err, market.ErrInvalidPin)
	assert.Empty(t, rec.all())

	msg, err := svc.SetPin(ctx, "1234", "1234")
	require.NoError(t, err)
	assert.Equal(t, "PIN set", msg)
	_, err = svc.UpdatePin(ctx, "1234", "5678", "5678")
	require.NoError(t, err)

	reqs := rec.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, map[string]string{"pin": "1234"}, reqs[0].Body)
	assert.Equal(t, map[string]string{"old_pin": "1234", "new_pin": "5678"}, reqs[1].Body)
}

func TestPinResetFlow(t *testing.T) {
	svc, rec, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.ForgotPin(ctx, "")
	assert.ErrorIs(t, err, ErrEmailRequired)
	_, err = svc.VerifyPinCode(ctx, "ada@example.com", "")
	assert.ErrorIs(t, err, ErrCodeRequired)

	_, err = svc.ForgotPin(ctx, "ada@example.com")
	require.NoError(t, err)
	_, err = svc.VerifyPinCode(ctx, "ada@example.com", "9876")
	require.NoError(t, err)
	msg, err := svc.ResetPin(ctx, "ada@example.com", "9876", "2468", "2468")
	require.NoError(t, err)
	assert.Equal(t, "Transaction PIN reset successfully!", msg)

	reqs := rec.all()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/pin/forgot", reqs[0].Path)
	assert.Equal(t, "/pin/verify-code", reqs[1].Path)
	assert.Equal(t, map[string]string{"email": "ada@example.com", "code": "9876", "new_pin": "2468"}, reqs[2].Body)
}

func TestBanks(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]stub{
		"GET /paystack/banks": {body: `{"status":true,"data":[{"name":"Access Bank","code":"044"},{"name":"GTBank","code":"058"}]}`},
	})
	banks, err := svc.Banks(context.Background())
	require.NoError(t, err)
	require.Len(t, banks, 2)
	b, ok := FindBank(banks, "058")
	require.True(t, ok)
	assert.Equal(t, "GTBank", b.Name)
	_, ok = FindBank(banks, "999")
	assert.False(t, ok)
}

func TestResolveAccount(t *testing.T) {
	svc, rec, _ := newTestService(t, map[string]stub{
		"POST /paystack/resolve-account": {body: `{"data":{"account_name":"ADA LOVELACE"}}`},
	})
	ctx := context.Background()

	_, err := svc.ResolveAccount(ctx, "12345", "044")
	assert.ErrorIs(t, err, ErrAccountNumber)
	assert.Empty(t, rec.all())

	name, err := svc.ResolveAccount(ctx, "0123456789", "044")
	require.NoError(t, err)
	assert.Equal(t, "ADA LOVELACE", name)
}

func TestResolveAccountWithoutName(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]stub{
		"POST /paystack/resolve-account": {body: `{"data":{}}`},
	})
	_, err := svc.ResolveAccount(context.Background(), "0123456789", "044")
	assert.ErrorIs(t, err, ErrAccountUnresolved)
}

func TestBankDetails(t *testing.T) {
	svc, rec, _ := newTestService(t, map[string]stub{
		"GET /me": {body: `{"user":{"id":1,"bank_name":"GTBank","account_number":"0123456789","account_name":"ADA"}}`},
	})
	ctx := context.Background()

	d, err := svc.CurrentBankDetails(ctx)
	require.NoError(t, err)
	assert.True(t, d.Complete())
	assert.Equal(t, "GTBank", d.BankName)

	_, err = svc.UpdateBankDetails(ctx, BankDetails{BankName: "GTBank"})
	assert.ErrorIs(t, err, ErrBankIncomplete)

	msg, err := svc.UpdateBankDetails(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "Bank details saved successfully!", msg)
	reqs := rec.all()
	assert.Equal(t, http.MethodPut, reqs[len(reqs)-1].Method)
	assert.Equal(t, "/user/bank-details", reqs[len(reqs)-1].Path)
}

func TestTheme(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	assert.Equal(t, ThemeLight, svc.Theme())
	require.NoError(t, svc.SetTheme(" Dark "))
	assert.Equal(t, ThemeDark, svc.Theme())
	assert.ErrorIs(t, svc.SetTheme("blue"), ErrBadTheme)
	assert.Equal(t, ThemeDark, svc.Theme())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  ADA@example.COM "))
	// fullwidth letters fold under NFKC
	assert.Equal(t, "ada@example.com", NormalizeEmail("ａｄａ@example.com"))
}
