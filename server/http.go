package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"devconnect/db"
	"devconnect/logger"
	"devconnect/models"

	"github.com/gorilla/mux"
)

const (
	sessionName   = "devconnect"
	sessionUserID = "user_id"
)

// httpError carries a status code out of a JSONHandler.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string {
	return e.msg
}

func errStatus(status int, msg string) error {
	return &httpError{status: status, msg: msg}
}

// JSONHandler wraps handlers that return error
type JSONHandler func(http.ResponseWriter, *http.Request) error

func (h JSONHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h(w, r); err != nil {
		status := http.StatusInternalServerError
		msg := "internal error"
		var he *httpError
		if errors.As(err, &he) {
			status, msg = he.status, he.msg
		} else {
			logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		}
		writeJSON(w, status, map[string]string{"error": msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.cors)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	auth := r.PathPrefix("/auth").Subrouter()
	auth.Handle("/register", JSONHandler(s.handleRegister)).Methods(http.MethodPost, http.MethodOptions)
	auth.Handle("/login", JSONHandler(s.handleLogin)).Methods(http.MethodPost, http.MethodOptions)
	auth.Handle("/me", JSONHandler(s.handleMe)).Methods(http.MethodGet, http.MethodOptions)
	auth.Handle("/logout", JSONHandler(s.handleLogout)).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/users", JSONHandler(s.handleUsers)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ws", s.handleWebsocket)

	return r
}

// cors allows credentialed requests from the configured origin(s).
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var in credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&in); err != nil {
		return in, errStatus(http.StatusBadRequest, "invalid request body")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	return in, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	in, err := decodeCredentials(w, r)
	if err != nil {
		return err
	}
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return errStatus(http.StatusBadRequest, "username, email and password are required")
	}

	user, err := s.db.CreateUser(in.Username, in.Email, in.Password)
	if errors.Is(err, db.ErrUserExists) {
		return errStatus(http.StatusConflict, "user already exists")
	}
	if err != nil {
		return err
	}

	logger.Info("Account created", "username", user.Username)
	return writeJSON(w, http.StatusCreated, map[string]models.User{"user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	in, err := decodeCredentials(w, r)
	if err != nil {
		return err
	}

	user, err := s.db.Authenticate(in.Email, in.Password)
	if errors.Is(err, db.ErrInvalidCredentials) {
		return errStatus(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return err
	}

	session, _ := s.store.Get(r, sessionName)
	session.Values[sessionUserID] = user.ID
	if err := session.Save(r, w); err != nil {
		return err
	}

	logger.Info("User logged in", "username", user.Username)
	return writeJSON(w, http.StatusOK, map[string]models.User{"user": user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) error {
	user, err := s.sessionUser(r)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]models.User{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, sessionName)
	delete(session.Values, sessionUserID)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUsers lists the directory. Emails stay private.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.sessionUser(r); err != nil {
		return err
	}

	users, err := s.db.ListUsers()
	if err != nil {
		return err
	}
	for i := range users {
		users[i].Email = ""
	}
	return writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	var userID string
	if user, err := s.sessionUser(r); err == nil {
		userID = user.ID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(s, conn, userID)
	s.hub.add(c)
	logger.Debug("Websocket connected", "remote", c.remote)

	go c.writePump()
	go c.readPump()
}

// sessionUser resolves the account behind the session cookie.
func (s *Server) sessionUser(r *http.Request) (models.User, error) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return models.User{}, errStatus(http.StatusUnauthorized, "not logged in")
	}
	id, ok := session.Values[sessionUserID].(string)
	if !ok || id == "" {
		return models.User{}, errStatus(http.StatusUnauthorized, "not logged in")
	}

	user, err := s.db.GetUserByID(id)
	if errors.Is(err, db.ErrNoRows) {
		return models.User{}, errStatus(http.StatusUnauthorized, "not logged in")
	}
	return user, err
}
