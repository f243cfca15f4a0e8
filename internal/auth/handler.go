package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Handler exposes the authentication flows over JSON. Field names on
// the wire follow the public API contract; messages are English.
type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes wires every auth endpoint onto the mux. Session-bound
// routes go through the middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, mw *Middleware) {
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/verify-email", h.VerifyEmail)
	mux.HandleFunc("POST /api/resend-verification", h.ResendVerification)

	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/login-2fa", h.LoginTOTP)
	mux.HandleFunc("POST /api/login-email-code", h.LoginEmailCode)

	mux.HandleFunc("POST /api/recovery/request", h.RequestRecovery)
	mux.HandleFunc("POST /api/recovery/validate", h.ValidateRecoveryCode)
	mux.HandleFunc("POST /api/recovery/reset", h.ResetPassword)

	mux.Handle("POST /api/logout", mw.RequireAuth(h.Logout))
	mux.Handle("POST /api/close-other-sessions", mw.RequireAuth(h.CloseOtherSessions))
	mux.Handle("GET /api/check-session", mw.RequireAuth(h.CheckSession))

	mux.Handle("POST /api/2fa/totp/setup", mw.RequireAuth(h.SetupTOTP))
	mux.Handle("POST /api/2fa/totp/confirm", mw.RequireAuth(h.ConfirmTOTP))
	mux.Handle("POST /api/2fa/email/request", mw.RequireAuth(h.RequestEmailTwoFactor))
	mux.Handle("POST /api/2fa/email/confirm", mw.RequireAuth(h.ConfirmEmailTwoFactor))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return true
}

func clientMeta(r *http.Request) ClientMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if first, _, found := strings.Cut(ip, ","); found {
			ip = first
		}
		ip = strings.TrimSpace(ip)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}
	return ClientMeta{IP: ip, UserAgent: r.UserAgent()}
}

type userPayload struct {
	ID     uint   `json:"id"`
	Nombre string `json:"nombre"`
	Correo string `json:"correo"`
	Estado string `json:"estado"`
}

func toUserPayload(u *User) userPayload {
	return userPayload{
		ID:     u.ID,
		Nombre: u.Name,
		Correo: u.Email,
		Estado: string(u.Status),
	}
}

type registerRequest struct {
	Nombre     string `json:"nombre"`
	Correo     string `json:"correo"`
	Contrasena string `json:"contrasena"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Nombre == "" || req.Correo == "" || req.Contrasena == "" {
		writeMessage(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if len(req.Contrasena) < 8 {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	user, err := h.service.Register(r.Context(), req.Nombre, req.Correo, req.Contrasena)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeMessage(w, http.StatusBadRequest, "Email is already registered")
			return
		}
		h.fail(w, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created. Check your email for the verification code.",
		"usuario": toUserPayload(user),
	})
}

type verifyEmailRequest struct {
	Correo string `json:"correo"`
	Codigo string `json:"codigo"`
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.VerifyEmail(r.Context(), req.Correo, req.Codigo); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			writeMessage(w, http.StatusUnauthorized, "Code invalid or expired")
		case errors.Is(err, ErrUserNotFound):
			writeMessage(w, http.StatusNotFound, "No pending account for that email")
		default:
			h.fail(w, "verify email", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verified": true,
		"message":  "Account verified. You can sign in now.",
	})
}

type emailOnlyRequest struct {
	Correo string `json:"correo"`
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailOnlyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.ResendVerification(r.Context(), req.Correo); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "No pending account for that email")
			return
		}
		h.fail(w, "resend verification", err)
		return
	}
	writeMessage(w, http.StatusOK, "Verification code sent again.")
}

type loginRequest struct {
	Correo     string `json:"correo"`
	Contrasena string `json:"contrasena"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Correo == "" || req.Contrasena == "" {
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.service.Login(r.Context(), req.Correo, req.Contrasena, clientMeta(r))
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	h.writeLoginResult(w, result)
}

type loginTOTPRequest struct {
	Correo    string `json:"correo"`
	Codigo2FA string `json:"codigo2fa"`
}

func (h *Handler) LoginTOTP(w http.ResponseWriter, r *http.Request) {
	var req loginTOTPRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.LoginWithTOTP(r.Context(), req.Correo, req.Codigo2FA, clientMeta(r))
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	h.writeLoginResult(w, result)
}

type loginEmailCodeRequest struct {
	Correo string `json:"correo"`
	Codigo string `json:"codigo"`
}

func (h *Handler) LoginEmailCode(w http.ResponseWriter, r *http.Request) {
	var req loginEmailCodeRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.LoginWithEmailCode(r.Context(), req.Correo, req.Codigo, clientMeta(r))
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	h.writeLoginResult(w, result)
}

func (h *Handler) writeLoginResult(w http.ResponseWriter, result *LoginResult) {
	if result.RequiresTwoFactor {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"requires2FA": true,
			"metodo_2fa":  string(result.Method),
			"message":     "Complete the second authentication step",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"access_token": result.Token,
		"token_type":   "bearer",
		"usuario":      toUserPayload(result.User),
	})
}

func (h *Handler) writeLoginError(w http.ResponseWriter, err error) {
	var locked *LockedError
	var badPassword *InvalidPasswordError

	switch {
	case errors.As(err, &locked):
		body := map[string]interface{}{
			"blocked": true,
			"message": "Too many failed attempts. Account temporarily locked.",
		}
		if locked.MinutesBlocked > 0 {
			body["minutesBlocked"] = locked.MinutesBlocked
		} else {
			body["minutesRemaining"] = locked.MinutesRemaining
		}
		writeJSON(w, http.StatusForbidden, body)

	case errors.As(err, &badPassword):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"message":           "Incorrect email or password",
			"attemptsRemaining": badPassword.AttemptsRemaining,
		})

	case errors.Is(err, ErrUserNotFound):
		writeMessage(w, http.StatusUnauthorized, "Incorrect email or password")

	case errors.Is(err, ErrAccountPending):
		writeMessage(w, http.StatusForbidden, "Account pending email verification")

	case errors.Is(err, ErrAccountSuspended):
		writeMessage(w, http.StatusForbidden, "Account is not active")

	case errors.Is(err, ErrInvalidCode):
		writeMessage(w, http.StatusUnauthorized, "Code invalid or expired")

	case errors.Is(err, ErrTwoFactorNotEnabled):
		writeMessage(w, http.StatusBadRequest, "Two-factor method not enabled for this account")

	case errors.Is(err, ErrTwoFactorMisconfigured):
		writeMessage(w, http.StatusForbidden, "Two-factor configuration invalid. Contact support.")

	default:
		h.fail(w, "login", err)
	}
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := TokenFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing session")
		return
	}
	if err := h.service.Logout(r.Context(), token); err != nil {
		h.fail(w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "Session closed")
}

func (h *Handler) CloseOtherSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	token, _ := TokenFromContext(r.Context())

	revoked, err := h.service.CloseOtherSessions(r.Context(), userID, token)
	if err != nil {
		h.fail(w, "close other sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Other sessions closed",
		"sessionsRevoked": revoked,
	})
}

// CheckSession only runs if the middleware let the request through, so
// reaching the body means the session is valid.
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	user, err := h.service.repository.GetUserByID(userID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"valid":   false,
			"message": "Session no longer valid",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"usuario": toUserPayload(user),
	})
}

func (h *Handler) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req emailOnlyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Correo == "" {
		writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}

	ack, err := h.service.RequestRecovery(r.Context(), req.Correo)
	if err != nil {
		var locked *LockedError
		if errors.As(err, &locked) {
			body := map[string]interface{}{
				"blocked": true,
				"message": "Too many recovery requests. Try again later.",
			}
			if locked.MinutesBlocked > 0 {
				body["minutesBlocked"] = locked.MinutesBlocked
			} else {
				body["minutesRemaining"] = locked.MinutesRemaining
			}
			writeJSON(w, http.StatusTooManyRequests, body)
			return
		}
		h.fail(w, "recovery request", err)
		return
	}

	writeMessage(w, http.StatusOK,
		"If the account exists, a recovery code was sent to "+ack.MaskedEmail)
}

type recoveryValidateRequest struct {
	Correo string `json:"correo"`
	Codigo string `json:"codigo"`
}

func (h *Handler) ValidateRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req recoveryValidateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.ValidateRecoveryCode(r.Context(), req.Correo, req.Codigo); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			writeMessage(w, http.StatusBadRequest, "Code invalid or expired")
			return
		}
		h.fail(w, "recovery validate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"message": "Code accepted. You can set a new password.",
	})
}

type resetPasswordRequest struct {
	Correo          string `json:"correo"`
	Codigo          string `json:"codigo"`
	NuevaContrasena string `json:"nuevaContrasena"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.NuevaContrasena) < 8 {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Correo, req.Codigo, req.NuevaContrasena)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			writeMessage(w, http.StatusBadRequest, "Code invalid or expired")
		case errors.Is(err, ErrSamePassword):
			writeMessage(w, http.StatusBadRequest, "New password must differ from the current one")
		default:
			h.fail(w, "password reset", err)
		}
		return
	}
	writeMessage(w, http.StatusOK, "Password updated. Sign in with your new password.")
}

func (h *Handler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	user, err := h.service.repository.GetUserByID(userID)
	if err != nil {
		h.fail(w, "totp setup", err)
		return
	}

	enrollment, err := h.service.SetupTOTP(r.Context(), user.Email)
	if err != nil {
		h.fail(w, "totp setup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"secret":      enrollment.Secret,
		"otpauth_url": enrollment.URL,
		"message":     "Scan the code in your authenticator, then confirm with a generated code.",
	})
}

type confirmCodeRequest struct {
	Codigo string `json:"codigo"`
}

func (h *Handler) ConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	var req confirmCodeRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := UserFromContext(r.Context())
	user, err := h.service.repository.GetUserByID(userID)
	if err != nil {
		h.fail(w, "totp confirm", err)
		return
	}

	if err := h.service.ConfirmTOTP(r.Context(), user.Email, req.Codigo); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			writeMessage(w, http.StatusBadRequest, "Code rejected")
		case errors.Is(err, ErrTwoFactorNotEnabled):
			writeMessage(w, http.StatusBadRequest, "Run setup first")
		default:
			h.fail(w, "totp confirm", err)
		}
		return
	}
	writeMessage(w, http.StatusOK, "Authenticator activated")
}

func (h *Handler) RequestEmailTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserFromContext(r.Context())
	user, err := h.service.repository.GetUserByID(userID)
	if err != nil {
		h.fail(w, "email 2fa request", err)
		return
	}
	if err := h.service.RequestEmailTwoFactor(r.Context(), user.Email); err != nil {
		h.fail(w, "email 2fa request", err)
		return
	}
	writeMessage(w, http.StatusOK, "Confirmation code sent to your email")
}

func (h *Handler) ConfirmEmailTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req confirmCodeRequest
	if !decode(w, r, &req) {
		return
	}
	userID, _ := UserFromContext(r.Context())
	user, err := h.service.repository.GetUserByID(userID)
	if err != nil {
		h.fail(w, "email 2fa confirm", err)
		return
	}

	if err := h.service.ConfirmEmailTwoFactor(r.Context(), user.Email, req.Codigo); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			writeMessage(w, http.StatusBadRequest, "Code rejected")
			return
		}
		h.fail(w, "email 2fa confirm", err)
		return
	}
	writeMessage(w, http.StatusOK, "Email codes activated as your second factor")
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.log.Error("handler failure", zap.String("op", op), zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}
