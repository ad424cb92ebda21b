package http

import (
	"context"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/civicworks/townhall/internal/auth/domain"
	"github.com/civicworks/townhall/internal/auth/service"
	"github.com/civicworks/townhall/pkg/authsdk"
	"github.com/civicworks/townhall/pkg/httpx"
	"github.com/civicworks/townhall/pkg/slogx"
)

const (
	qrImageSize = 256

	defaultQRPollInterval = 2 * time.Second
	qrWriteTimeout        = 5 * time.Second
)

// QRHandler serves the cross-device login endpoints.
type QRHandler struct {
	QRLoginService *service.QRLoginService
	PayloadPrefix  string
	AccessTTL      time.Duration

	// PollInterval bounds how long a websocket watcher can miss a change
	// made on another node, or the session running out.
	PollInterval time.Duration
}

// HandleCreate godoc
//
//	@Summary		Create QR Login Session
//	@Description	Starts a pending session for an unauthenticated device. Render the session ID as a QR code (or fetch qr.png) for a signed in device to scan.
//	@Tags			QR Login
//	@Produce		json
//	@Success		201	{object}	authsdk.QRSessionResponse	"session_id, state, expires_at"
//	@Failure		429	{object}	authsdk.ErrorResponse		"rate_limit_exceeded"
//	@Router			/v1/auth/qr/sessions [post].
func (h *QRHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.QRLoginService.Create(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toQRSession(sess))
}

// HandleStatus godoc
//
//	@Summary		Poll QR Login Session
//	@Description	Reports pending, confirmed or expired. Claimed sessions no longer exist.
//	@Tags			QR Login
//	@Produce		json
//	@Param			id	path		string						true	"Session ID"
//	@Success		200	{object}	authsdk.QRSessionResponse	"session_id, state, expires_at"
//	@Failure		404	{object}	authsdk.ErrorResponse		"session_not_found"
//	@Router			/v1/auth/qr/sessions/{id} [get].
func (h *QRHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.QRLoginService.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toQRSession(sess))
}

// HandleImage godoc
//
//	@Summary		QR Code Image
//	@Description	Renders the session as a 256x256 PNG QR code. Only live sessions are rendered.
//	@Tags			QR Login
//	@Produce		png
//	@Param			id	path		string					true	"Session ID"
//	@Success		200	{file}		binary					"image/png"
//	@Failure		404	{object}	authsdk.ErrorResponse	"session_not_found"
//	@Router			/v1/auth/qr/sessions/{id}/qr.png [get].
func (h *QRHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.QRLoginService.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sess.State == domain.QRExpired {
		authsdk.ErrSessionNotFound.WriteError(w)
		return
	}

	code, err := qr.Encode(h.PayloadPrefix+sess.ID, qr.M, qr.Auto)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	code, err = barcode.Scale(code, qrImageSize, qrImageSize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, code); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to write qr image", "err", err)
	}
}

// HandleWatch godoc
//
//	@Summary		Watch QR Login Session
//	@Description	Websocket that pushes {"session_id","state"} on every state change. The server closes it after confirmed or expired.
//	@Tags			QR Login
//	@Param			id	path		string					true	"Session ID"
//	@Success		101	{object}	authsdk.QREvent			"stream of state events"
//	@Failure		404	{object}	authsdk.ErrorResponse	"session_not_found"
//	@Router			/v1/auth/qr/sessions/{id}/ws [get].
func (h *QRHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := slogx.FromContext(r.Context())

	// Subscribe before the first read so no transition is missed.
	events, cancel := h.QRLoginService.Watch(id)
	defer cancel()

	sess, err := h.QRLoginService.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Info("qr websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Inbound messages are not expected; CloseRead handles control frames
	// and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	state := sess.State
	if err := h.writeEvent(ctx, conn, id, state); err != nil {
		log.Info("qr websocket write failed", "err", err)
		return
	}

	ticker := time.NewTicker(h.pollInterval())
	defer ticker.Stop()

	for !terminalQRState(state) {
		var next domain.QRState
		select {
		case <-ctx.Done():
			return
		case next = <-events:
		case <-ticker.C:
			next = h.poll(ctx, id)
		}
		if next == state || next == "" {
			continue
		}

		state = next
		if err := h.writeEvent(ctx, conn, id, state); err != nil {
			log.Info("qr websocket write failed", "err", err)
			return
		}
	}

	_ = conn.Close(websocket.StatusNormalClosure, string(state))
}

func (h *QRHandler) pollInterval() time.Duration {
	if h.PollInterval <= 0 {
		return defaultQRPollInterval
	}
	return h.PollInterval
}

// poll reads the stored state. A session that is gone has been claimed or
// reaped, and is reported as expired.
func (h *QRHandler) poll(ctx context.Context, id string) domain.QRState {
	sess, err := h.QRLoginService.Status(ctx, id)
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return domain.QRExpired
	case err != nil:
		slogx.FromContext(ctx).Warn("qr websocket poll failed", slog.Any("err", err))
		return ""
	default:
		return sess.State
	}
}

func (h *QRHandler) writeEvent(ctx context.Context, conn *websocket.Conn, id string, state domain.QRState) error {
	ctx, cancel := context.WithTimeout(ctx, qrWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, authsdk.QREvent{
		SessionID: id,
		State:     string(state),
	})
}

func terminalQRState(s domain.QRState) bool {
	return s == domain.QRConfirmed || s == domain.QRExpired
}

// HandleConfirm godoc
//
//	@Summary		Confirm QR Login Session
//	@Description	Binds a pending session to the signed in account. Only the first confirmation succeeds.
//	@Tags			QR Login
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string						true	"Session ID"
//	@Success		200	{object}	authsdk.QRSessionResponse	"confirmed session"
//	@Failure		401	{object}	authsdk.ErrorResponse		"unauthorized"
//	@Failure		404	{object}	authsdk.ErrorResponse		"session_not_found"
//	@Failure		409	{object}	authsdk.ErrorResponse		"session_already_used"
//	@Failure		410	{object}	authsdk.ErrorResponse		"session_expired"
//	@Router			/v1/auth/qr/sessions/{id}/confirm [post].
func (h *QRHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	sub, ok := httpx.SubjectFromContext(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	sess, err := h.QRLoginService.Confirm(r.Context(), r.PathValue("id"), sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toQRSession(sess))
}

// HandleClaim godoc
//
//	@Summary		Claim QR Login Session
//	@Description	Issues a token pair to the device that created a confirmed session, and removes the session.
//	@Tags			QR Login
//	@Produce		json
//	@Param			id	path		string					true	"Session ID"
//	@Success		200	{object}	authsdk.SignInResponse	"token pair and principal"
//	@Failure		403	{object}	authsdk.ErrorResponse	"account_inactive"
//	@Failure		404	{object}	authsdk.ErrorResponse	"session_not_found"
//	@Failure		410	{object}	authsdk.ErrorResponse	"session_expired"
//	@Failure		425	{object}	authsdk.ErrorResponse	"session_not_confirmed"
//	@Header			200	{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/qr/sessions/{id}/claim [post].
func (h *QRHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	principal, pair, err := h.QRLoginService.Claim(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSignIn(principal, pair, h.AccessTTL))
}
