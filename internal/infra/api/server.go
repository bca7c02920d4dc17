package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dvsafe-service/internal/domain/model"
	"dvsafe-service/internal/infra/logging"
	"dvsafe-service/internal/infra/metrics"
	"dvsafe-service/internal/usecase"
)

// PinHeader carries the chat PIN on GET requests, which have no body.
const PinHeader = "X-Chat-Pin"

// Services bundles the use cases the HTTP layer drives.
type Services struct {
	Settings   usecase.SettingsUseCase
	Contacts   usecase.ContactUseCase
	Visibility usecase.VisibilityUseCase
	Chats      usecase.SafeChatUseCase
	Panic      usecase.PanicUseCase
	Redactor   *usecase.NotificationRedactor
	Resources  *usecase.ResourcesUseCase
}

type Server struct {
	svc     Services
	auth    *Authenticator
	timeout time.Duration
	log     *zerolog.Logger
}

func NewServer(svc Services, auth *Authenticator, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	return &Server{svc: svc, auth: auth, timeout: requestTimeout, log: logging.Component(logger, "http")}
}

// Routes builds the full handler tree, including /health and /metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/safety", func(r chi.Router) {
		r.Use(Timeout(s.timeout), s.auth.Middleware)

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.updateSettings)
		r.Post("/settings/reset", s.resetSettings)
		r.Post("/safe-mode", s.enableSafeMode)
		r.Post("/panic", s.triggerPanic)

		r.Get("/emergency-contacts", s.listContacts)
		r.Post("/emergency-contacts", s.addContact)
		r.Delete("/emergency-contacts/{contactID}", s.removeContact)

		r.Post("/block/{userID}", s.blockUser)
		r.Get("/visibility/{viewerID}", s.visibility)

		r.Get("/chats", s.listChats)
		r.Post("/chats", s.createChat)
		r.Post("/chats/{chatID}/access", s.accessChat)
		r.Post("/chats/{chatID}/messages", s.sendMessage)
		r.Post("/chats/{chatID}/visibility", s.setChatHidden)

		r.Post("/safe-notification", s.safeNotification)
		r.Post("/clear-traces", s.clearTraces)
		r.Get("/resources", s.resources)
	})
	return r
}

func currentUser(r *http.Request) string {
	id, _ := logging.UserID(r.Context())
	return id
}

// ---- settings ----

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Settings.Get(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out, err := s.svc.Settings.Update(r.Context(), currentUser(r), patch)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) resetSettings(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Settings.Reset(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) enableSafeMode(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Settings.EnableSafeMode(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// triggerPanic always answers 200; delivery problems show up in the result.
func (s *Server) triggerPanic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Panic.Trigger(r.Context(), currentUser(r)))
}

// ---- contacts ----

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Contacts.List(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) addContact(w http.ResponseWriter, r *http.Request) {
	var in model.ContactInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	c, err := s.svc.Contacts.Add(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) removeContact(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Contacts.Remove(r.Context(), currentUser(r), chi.URLParam(r, "contactID"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// ---- visibility ----

func (s *Server) blockUser(w http.ResponseWriter, r *http.Request) {
	changed, err := s.svc.Visibility.BlockUser(r.Context(), currentUser(r), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// visibility answers whether viewerID can currently see the caller's profile.
func (s *Server) visibility(w http.ResponseWriter, r *http.Request) {
	visible, err := s.svc.Visibility.IsVisible(r.Context(), currentUser(r), chi.URLParam(r, "viewerID"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}

// ---- chats ----

type pinRequest struct {
	Pin string `json:"pin"`
}

type sendMessageRequest struct {
	Content           string   `json:"content"`
	Pin               string   `json:"pin,omitempty"`
	AutoDeleteMinutes *float64 `json:"autoDeleteMinutes,omitempty"`
}

type setHiddenRequest struct {
	Hidden bool   `json:"hidden"`
	Pin    string `json:"pin,omitempty"`
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Chats.List(r.Context(), currentUser(r), r.Header.Get(PinHeader))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var opts model.ChatOptions
	if err := decode(r, &opts); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	chat, err := s.svc.Chats.Create(r.Context(), currentUser(r), opts)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

// accessChat renders a denial as 200 null, identical for every reason.
func (s *Server) accessChat(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	chat, err := s.svc.Chats.Access(r.Context(), currentUser(r), chi.URLParam(r, "chatID"), req.Pin)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// sendMessage answers 200 null for a chat the caller cannot open, including a
// PIN-gated chat sent to without its PIN.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var ttl *time.Duration
	if req.AutoDeleteMinutes != nil {
		d, err := model.MinutesToDuration(*req.AutoDeleteMinutes)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		ttl = &d
	}
	msg, err := s.svc.Chats.SendMessage(r.Context(), currentUser(r), chi.URLParam(r, "chatID"), req.Content, req.Pin, ttl)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) setChatHidden(w http.ResponseWriter, r *http.Request) {
	var req setHiddenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	chat, err := s.svc.Chats.SetHidden(r.Context(), currentUser(r), chi.URLParam(r, "chatID"), req.Hidden, req.Pin)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// ---- notifications, traces, resources ----

func (s *Server) safeNotification(w http.ResponseWriter, r *http.Request) {
	var in model.Notification
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	settings, err := s.svc.Settings.Get(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Redactor.Redact(settings, in.Title, in.Message))
}

func (s *Server) clearTraces(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Resources.ClearTraces(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) resources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.svc.Resources.Resources(r.URL.Query().Get("region"))})
}
