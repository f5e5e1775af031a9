package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/session"
	"github.com/tarla/storefront/internal/store"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 150
)

// HandleAuthPage is the GET side of /register and /login: it only surfaces
// pending messages, or sends signed-in visitors home.
func (h *Handler) HandleAuthPage(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if sess.Authenticated() {
		h.redirect(w, r, sess, "/")
		return
	}
	h.render(w, r, sess, false, nil)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)
	if sess.Authenticated() {
		h.redirect(w, r, sess, "/")
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	email := strings.TrimSpace(r.FormValue("email"))

	switch {
	case username == "" || password == "" || utf8.RuneCountInString(username) > maxUsernameLength:
		h.flashRedirect(w, r, sess, session.FlashError, msgRegisterInvalid, "/register")
		return
	case password != r.FormValue("password2"):
		h.flashRedirect(w, r, sess, session.FlashError, msgPasswordMismatch, "/register")
		return
	case utf8.RuneCountInString(password) < minPasswordLength:
		h.flashRedirect(w, r, sess, session.FlashError, msgPasswordTooShort, "/register")
		return
	}

	user, err := h.accounts.CreateUser(ctx, username, password, email)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUsername) {
			h.flashRedirect(w, r, sess, session.FlashError, msgUsernameTaken, "/register")
			return
		}
		h.fail(w, r, sess, err, "/register", "failed to create user")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	sess.AddFlash(session.FlashSuccess, msgRegistered)
	h.signIn(w, r, sess, user, "/")
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)
	if sess.Authenticated() {
		h.redirect(w, r, sess, "/")
		return
	}

	user, err := h.accounts.Authenticate(ctx, strings.TrimSpace(r.FormValue("username")), r.FormValue("password"))
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			h.flashRedirect(w, r, sess, session.FlashError, msgInvalidCredentials, "/login")
			return
		}
		h.fail(w, r, sess, err, "/login", "failed to authenticate")
		return
	}

	sess.AddFlash(session.FlashSuccess, fmt.Sprintf(msgWelcome, user.Username))
	h.signIn(w, r, sess, user, safeNext(r.URL.Query().Get("next")))
}

// signIn attaches user to the session under a fresh session id.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, sess *session.Session, user *models.User, target string) {
	sess.Login(user.ID)
	if err := h.sessions.Renew(r.Context(), w, sess); err != nil {
		h.logger.Error("failed to renew session", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, msgTryAgain)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeNext only allows same-site relative paths as a post-login target.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// HandleLogout drops everything the session held, cart included, and
// starts over under a new id.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if !sess.Authenticated() {
		h.redirect(w, r, sess, "/")
		return
	}

	sess.Logout()
	sess.ClearCart()
	sess.Orders = nil
	sess.AddFlash(session.FlashSuccess, msgLoggedOut)

	if err := h.sessions.Renew(r.Context(), w, sess); err != nil {
		h.logger.Error("failed to renew session", "error", err)
		h.writeError(w, http.StatusInternalServerError, msgTryAgain)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type profileView struct {
	User   *models.User      `json:"user"`
	Orders *store.CursorPage `json:"orders"`
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(r)

	if !sess.Authenticated() {
		h.flashRedirect(w, r, sess, session.FlashWarning, msgLoginRequired, "/login?next="+url.QueryEscape("/profile"))
		return
	}

	user, err := h.accounts.GetUser(ctx, *sess.UserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			sess.Logout()
			h.flashRedirect(w, r, sess, session.FlashWarning, msgLoginRequired, "/login")
			return
		}
		h.failView(w, err, "failed to get user", "user_id", *sess.UserID)
		return
	}

	cursor := r.URL.Query().Get("cursor")
	if _, err := store.DecodeCursor(cursor); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	orders, err := h.orders.ListOrdersCursor(ctx, store.OrderFilter{UserID: &user.ID}, cursor, profilePage)
	if err != nil {
		h.failView(w, err, "failed to list user orders", "user_id", user.ID)
		return
	}

	h.render(w, r, sess, false, profileView{User: user, Orders: orders})
}
