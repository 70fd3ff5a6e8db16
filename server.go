package taskboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/golang/glog"
)

const maxPayloadSize = 1 << 16

type ServerSettings struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownTimeout  time.Duration
	ObserverSettings *ObserverSettings
}

func DefaultServerSettings() *ServerSettings {
	return &ServerSettings{
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		ObserverSettings: DefaultObserverSettings(),
	}
}

// the transport boundary. parses inbound requests into mutation
// intents, runs the auth gate in front of every mutation endpoint,
// and upgrades observer connections into the registry.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	manager  *TaskManager
	auth     *AuthService
	registry *ConnRegistry

	upgrader *websocket.Upgrader

	settings *ServerSettings
}

func NewServerWithDefaults(
	ctx context.Context,
	manager *TaskManager,
	auth *AuthService,
	registry *ConnRegistry,
) *Server {
	return NewServer(ctx, manager, auth, registry, DefaultServerSettings())
}

func NewServer(
	ctx context.Context,
	manager *TaskManager,
	auth *AuthService,
	registry *ConnRegistry,
	settings *ServerSettings,
) *Server {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Server{
		ctx:      cancelCtx,
		cancel:   cancel,
		manager:  manager,
		auth:     auth,
		registry: registry,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		settings: settings,
	}
}

func (self *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", self.handleRegister)
	mux.HandleFunc("/auth/login", self.handleLogin)
	mux.HandleFunc("/tasks", self.requireAuth(self.handleTasks))
	mux.HandleFunc("/tasks/", self.requireAuth(self.handleTaskById))
	mux.HandleFunc("/ws", self.requireAuth(self.handleWs))
	return mux
}

func (self *Server) Run(listen string) error {
	server := &http.Server{
		Addr:        listen,
		Handler:     self.Handler(),
		ReadTimeout: self.settings.ReadTimeout,
		// websocket connections outlive the write timeout after hijack
		WriteTimeout: self.settings.WriteTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return self.ctx
		},
	}

	go func() {
		<-self.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), self.settings.ShutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	glog.Infof("[s]listening on %s\n", listen)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (self *Server) Close() {
	self.cancel()
}

// the auth gate. mutation handlers only ever run for verified callers.
func (self *Server) requireAuth(next func(w http.ResponseWriter, r *http.Request, claims *AuthClaims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("x-access-token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusForbidden, "a token is required for authentication")
			return
		}

		claims, err := self.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, claims)
	}
}

type authArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (self *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	args := &authArgs{}
	if err := readJson(r, args); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, _, err := self.auth.Register(r.Context(), args.Email, args.Password)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, http.StatusConflict, "user already exists, please login")
			return
		}
		self.writeMutationError(w, err)
		return
	}
	writeJson(w, http.StatusCreated, user)
}

func (self *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	args := &authArgs{}
	if err := readJson(r, args); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, _, err := self.auth.Login(r.Context(), args.Email, args.Password)
	if err != nil {
		// do not leak whether the email or the password was wrong
		if errors.Is(err, ErrNotFound) || IsValidationError(err) {
			writeError(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		self.writeMutationError(w, err)
		return
	}
	writeJson(w, http.StatusOK, user)
}

func (self *Server) handleTasks(w http.ResponseWriter, r *http.Request, claims *AuthClaims) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := self.manager.ListTasks(r.Context())
		if err != nil {
			self.writeMutationError(w, err)
			return
		}
		writeJson(w, http.StatusOK, tasks)
	case http.MethodPost:
		payload, err := readPayload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		task, err := self.manager.AddTask(r.Context(), payload)
		if err != nil {
			self.writeMutationError(w, err)
			return
		}
		writeJson(w, http.StatusCreated, task)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (self *Server) handleTaskById(w http.ResponseWriter, r *http.Request, claims *AuthClaims) {
	idStr := strings.TrimPrefix(r.URL.Path, "/tasks/")
	taskId, err := ParseId(idStr)
	if err != nil {
		self.writeMutationError(w, NewValidationError("invalid task id"))
		return
	}

	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		payload, err := readPayload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		task, err := self.manager.UpdateTask(r.Context(), taskId, payload)
		if err != nil {
			self.writeMutationError(w, err)
			return
		}
		writeJson(w, http.StatusOK, task)
	case http.MethodDelete:
		removed, err := self.manager.DeleteTask(r.Context(), taskId)
		if err != nil {
			self.writeMutationError(w, err)
			return
		}
		writeJson(w, http.StatusOK, map[string]any{
			"deleted": removed,
			"id":      taskId,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (self *Server) handleWs(w http.ResponseWriter, r *http.Request, claims *AuthClaims) {
	ws, err := self.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[s]upgrade error = %s\n", err)
		return
	}
	glog.V(2).Infof("[s]observer connect %s\n", claims.UserId)
	// the observer registers itself and owns the socket from here
	NewWsObserver(self.ctx, ws, self.registry, self.settings.ObserverSettings)
}

func (self *Server) writeMutationError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJson(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"causes": validationErr.Causes,
		})
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	case errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		glog.Infof("[s]internal error = %s\n", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func readPayload(r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func readJson(r *http.Request, out any) error {
	payload, err := readPayload(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

func writeJson(w http.ResponseWriter, status int, out any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(out)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, map[string]any{
		"error": message,
	})
}
