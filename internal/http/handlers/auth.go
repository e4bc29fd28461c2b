package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/avinash-394/website/internal/auth"
	"github.com/avinash-394/website/internal/cache"
	"github.com/avinash-394/website/internal/config"
	"github.com/avinash-394/website/internal/domain/user"
	"github.com/avinash-394/website/internal/http/middlewares"
	"github.com/avinash-394/website/internal/notifications"
	"github.com/avinash-394/website/internal/observability"
	"github.com/avinash-394/website/internal/repo/postgres"
	"github.com/avinash-394/website/internal/security"
	"github.com/avinash-394/website/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Small store interfaces so tests can fake the repositories.

type UserStore interface {
	Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id, name, email string) (user.User, error)
	SetAvatar(ctx context.Context, id, avatar string) (user.User, error)
}

type ResetTicketStore interface {
	Create(ctx context.Context, row postgres.ResetTicketRow) error
	ConsumeAndSetPassword(ctx context.Context, ticketHash, newPasswordHash string) (userID string, err error)
}

type AuthHandler struct {
	users    UserStore
	tickets  ResetTicketStore
	jwt      *auth.Manager
	avatars  *storage.AvatarStore
	notifier notifications.Notifier
	snapshot *cache.UserCache
	metrics  *observability.Prom
	cfg      config.Config
	log      *slog.Logger
}

func NewAuthHandler(
	users UserStore,
	tickets ResetTicketStore,
	jwtManager *auth.Manager,
	avatars *storage.AvatarStore,
	notifier notifications.Notifier,
	snapshot *cache.UserCache,
	metrics *observability.Prom,
	cfg config.Config,
	log *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tickets:  tickets,
		jwt:      jwtManager,
		avatars:  avatars,
		notifier: notifier,
		snapshot: snapshot,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// bcrypt hash of an unguessable throwaway value; compared against when the
// email is unknown so login latency does not reveal account existence.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func userPayload(u user.User) gin.H {
	return gin.H{"user": u}
}

func sessionPayload(u user.User, token string) gin.H {
	return gin.H{"user": u, "token": token}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		h.metrics.ObserveAuth("register", "error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	email := user.NormalizeEmail(req.Email)

	// default role for new users
	u, err := h.users.Create(cctx, email, hash, req.Name, "user")

	if err != nil {
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			h.metrics.ObserveAuth("register", "rejected")
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		h.metrics.ObserveAuth("register", "error")
		RespondInternal(ctx, "Could not create user")
		return
	}

	token, _, err := h.jwt.Issue(u.ID, u.Email, u.Role)

	if err != nil {
		h.metrics.ObserveAuth("register", "error")
		RespondInternal(ctx, "Could not generate token")
		return
	}

	h.metrics.ObserveAuth("register", "ok")
	RespondData(ctx, http.StatusCreated, sessionPayload(u, token))
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, user.NormalizeEmail(req.Email))

	if err != nil {
		// burn a comparison anyway; unknown email and wrong password must
		// be indistinguishable, including on the clock
		_ = security.CheckPassword(dummyPasswordHash, req.Password)
		h.metrics.ObserveAuth("login", "rejected")
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if !security.PasswordMatches(foundUser.PasswordHash, req.Password) {
		h.metrics.ObserveAuth("login", "rejected")
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	token, _, err := h.jwt.Issue(foundUser.ID, foundUser.Email, foundUser.Role)

	if err != nil {
		h.metrics.ObserveAuth("login", "error")
		RespondInternal(ctx, "Could not generate token")
		return
	}

	h.metrics.ObserveAuth("login", "ok")
	RespondData(ctx, http.StatusOK, sessionPayload(foundUser, token))
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID := h.requireUserID(ctx)

	if userID == "" {
		return
	}

	if h.snapshot != nil {
		if u, ok := h.snapshot.Get(userID); ok {
			RespondData(ctx, http.StatusOK, userPayload(u))
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			// token can outlive the account
			RespondNotFound(ctx, "User no longer exists")
			return
		}

		RespondInternal(ctx, "Could not load user")
		return
	}

	if h.snapshot != nil {
		h.snapshot.Put(u)
	}

	h.metrics.ObserveAuth("me", "ok")
	RespondData(ctx, http.StatusOK, userPayload(u))
}

func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	userID := h.requireUserID(ctx)

	if userID == "" {
		return
	}

	var req UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, userID, req.Name, user.NormalizeEmail(req.Email))

	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			h.metrics.ObserveAuth("profile", "rejected")
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, postgres.ErrUserNotFound):
			RespondNotFound(ctx, "User no longer exists")
		default:
			h.metrics.ObserveAuth("profile", "error")
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	if h.snapshot != nil {
		h.snapshot.Invalidate(userID)
	}

	h.metrics.ObserveAuth("profile", "ok")
	RespondData(ctx, http.StatusOK, userPayload(u))
}

func (h *AuthHandler) UploadAvatar(ctx *gin.Context) {
	userID := h.requireUserID(ctx)

	if userID == "" {
		return
	}

	fileHeader, err := ctx.FormFile("avatar")

	if err != nil {
		RespondBadRequest(ctx, "Missing avatar file", nil)
		return
	}

	f, err := fileHeader.Open()

	if err != nil {
		RespondBadRequest(ctx, "Could not read avatar file", nil)
		return
	}
	defer f.Close()

	relPath, err := h.avatars.Save(f)

	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			h.metrics.ObserveAuth("avatar", "rejected")
			RespondError(ctx, http.StatusBadRequest, "upload_rejected", "Avatar file is too large.", nil)
		case errors.Is(err, storage.ErrUnsupportedType):
			h.metrics.ObserveAuth("avatar", "rejected")
			RespondError(ctx, http.StatusBadRequest, "upload_rejected", "Avatar must be an image.", nil)
		default:
			h.metrics.ObserveAuth("avatar", "error")
			RespondInternal(ctx, "Could not store avatar")
		}
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.SetAvatar(cctx, userID, relPath)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User no longer exists")
			return
		}

		h.metrics.ObserveAuth("avatar", "error")
		RespondInternal(ctx, "Could not update avatar")
		return
	}

	if h.snapshot != nil {
		h.snapshot.Invalidate(userID)
	}

	h.metrics.ObserveAuth("avatar", "ok")
	h.metrics.ObserveAvatarBytes(int(fileHeader.Size))
	RespondData(ctx, http.StatusOK, userPayload(u))
}

const forgotPasswordReply = "If that email has an account, a reset link has been sent."

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// mint the ticket before the lookup so the work done is the same for
	// known and unknown emails
	rawTicket, ticketHash, err := auth.NewResetTicket()

	if err != nil {
		RespondInternal(ctx, "Could not process request")
		return
	}

	email := user.NormalizeEmail(req.Email)

	foundUser, err := h.users.GetByEmail(cctx, email)

	if err == nil {
		row := postgres.ResetTicketRow{
			ID:         uuid.NewString(),
			UserID:     foundUser.ID,
			TicketHash: ticketHash,
			ExpiresAt:  time.Now().UTC().Add(h.cfg.ResetTicketTTL()),
			CreatedAt:  time.Now().UTC(),
		}

		// failures past this point must not change the response, or the
		// endpoint becomes an account oracle; log and move on
		err = h.tickets.Create(cctx, row)

		if err != nil {
			h.log.ErrorContext(cctx, "reset_ticket_create_failed", "err", err)
		} else {
			err = h.notifier.SendPasswordReset(cctx, notifications.SendPasswordResetInput{
				Email:    foundUser.Email,
				Name:     foundUser.Name,
				Ticket:   rawTicket,
				ResetURL: h.cfg.PublicBaseURL + "/reset-password/" + rawTicket,
			})

			if err != nil {
				h.log.ErrorContext(cctx, "reset_mail_failed", "err", err)
			}
		}
	}

	h.metrics.ObserveAuth("forgot", "ok")
	RespondData(ctx, http.StatusOK, gin.H{"message": forgotPasswordReply})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	rawTicket := ctx.Param("token")

	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	// single-use consumption; the repo holds the row lock
	userID, err := h.tickets.ConsumeAndSetPassword(cctx, auth.HashResetTicket(rawTicket), hash)

	if err != nil {
		if errors.Is(err, postgres.ErrTicketInvalid) {
			h.metrics.ObserveAuth("reset", "rejected")
			RespondBadRequest(ctx, "Reset link is invalid or has expired.", nil)
			return
		}

		h.metrics.ObserveAuth("reset", "error")
		RespondInternal(ctx, "Could not reset password")
		return
	}

	if h.snapshot != nil {
		h.snapshot.Invalidate(userID)
	}

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	token, _, err := h.jwt.Issue(u.ID, u.Email, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not generate token")
		return
	}

	h.metrics.ObserveAuth("reset", "ok")
	RespondData(ctx, http.StatusOK, sessionPayload(u, token))
}

// requireUserID pulls the authenticated identity placed by the middleware.
// Responds 401 and returns "" when it is absent.
func (h *AuthHandler) requireUserID(ctx *gin.Context) string {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok || id == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return ""
	}

	return id
}
