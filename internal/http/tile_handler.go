package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"patient-tile/internal/models"
	"patient-tile/internal/session"
	"patient-tile/internal/store"
	"patient-tile/internal/tile"
	"patient-tile/internal/view"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryLister 状态变化历史查询（DB 未启用时为 nil）
type HistoryLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TransitionEvent, error)
}

// TileHandler 页面与磁贴 API
type TileHandler struct {
	sessions   *session.Manager
	kv         store.KV
	history    HistoryLister
	cookieName string
	logger     *zap.Logger
}

func NewTileHandler(sessions *session.Manager, kv store.KV, history HistoryLister, cookieName string, logger *zap.Logger) *TileHandler {
	return &TileHandler{
		sessions:   sessions,
		kv:         kv,
		history:    history,
		cookieName: cookieName,
		logger:     logger,
	}
}

type stateResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Color     string `json:"color"`
	Letter    string `json:"letter"`
}

// GET /, /tile, 其他路径
func (h *TileHandler) Page(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	v := s.View()
	page := view.Render(r.URL.Path, v.Snapshot, v.Patient, v.FetchErr)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, page); err != nil {
		h.logger.Error("Failed to render page", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

// GET /api/v1/tile/state
func (h *TileHandler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Ok(toStateResponse(s.ID(), s.View().Snapshot)))
}

// POST /api/v1/tile/patient
// body: 病人 JSON 对象，或 null / 空 表示清除
func (h *TileHandler) PushPatient(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	body, err := readBody(r, maxBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	patient := tile.Patient(body)
	if patient.Present() && !json.Valid(patient) {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	s.Apply(r.Context(), patient, models.SourcePush)
	writeJSON(w, http.StatusOK, Ok(toStateResponse(s.ID(), s.View().Snapshot)))
}

// GET /api/v1/tile/sessions
func (h *TileHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	states, err := store.SessionStates(r.Context(), h.kv, tile.KeyState)
	if err != nil {
		// 存储不可用时返回空列表
		h.logger.Warn("Failed to scan session states, returning empty list", zap.Error(err))
		writeJSON(w, http.StatusOK, Ok([]models.SessionState{}))
		return
	}

	items := make([]models.SessionState, 0, len(states))
	for id, raw := range states {
		st := tile.ParseState(raw)
		items = append(items, models.SessionState{
			SessionID: id,
			State:     st.String(),
			Color:     string(st.Color()),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SessionID < items[j].SessionID })

	writeJSON(w, http.StatusOK, Ok(items))
}

// GET /api/v1/tile/history?limit=50
func (h *TileHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, Fail("history not enabled"))
		return
	}
	id, ok := h.sessionID(r)
	if !ok {
		writeJSON(w, http.StatusOK, Ok([]models.TransitionEvent{}))
		return
	}

	events, err := h.history.ListBySession(r.Context(), id, parseInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		h.logger.Error("Failed to list tile history", zap.String("session_id", id), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to load history"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

// session 读取或分配会话 cookie，并返回已打开的会话
func (h *TileHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := h.sessionID(r)
	if !ok {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.logger.Warn("Session unavailable", zap.String("session_id", id), zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return nil, false
	}
	return s, true
}

func (h *TileHandler) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func toStateResponse(id string, snap tile.Snapshot) stateResponse {
	return stateResponse{
		SessionID: id,
		State:     snap.State.String(),
		Color:     string(snap.Color),
		Letter:    snap.Letter(),
	}
}
