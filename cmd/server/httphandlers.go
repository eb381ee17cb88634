package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"example.com/openchat/internal/chat"
	"example.com/openchat/internal/metrics"
	"example.com/openchat/internal/middleware"
	"example.com/openchat/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// postNamespace derives stable post ids from author and sequence, so ids
// survive a journal replay.
var postNamespace = uuid.MustParse("8f0c6a55-3c1e-4d4b-9a57-1f3e2b7c9d10")

type registerRequest struct {
	Username string `json:"username" validate:"max=50"`
	Password string `json:"password" validate:"max=128"`
	About    string `json:"about" validate:"max=280"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type publishRequest struct {
	Text string `json:"text" validate:"max=1000"`
}

type followRequest struct {
	FollowerID string `json:"followerId" validate:"required"`
	FolloweeID string `json:"followeeId" validate:"required"`
}

type authenticatedUser struct {
	models.User
	Token string `json:"token"`
}

// --- HTTP Handlers ---

// registerHandler creates an account.
// Expects JSON body: {"username": "...", "password": "...", "about": "..."}
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !s.decode(w, r, "http/users", &body) {
		return
	}

	account, err := s.registry.Register(body.Username, body.Password, body.About)
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	metrics.Registrations.Inc()
	logg.Info("http/users", "User registered with user_id="+account.ID)

	s.respondWithToken(w, http.StatusCreated, account)
}

// loginHandler exchanges credentials for a token.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !s.decode(w, r, "http/login", &body) {
		return
	}

	account, err := s.registry.Authenticate(body.Username, body.Password)
	if err != nil {
		metrics.Logins.WithLabelValues("failed").Inc()
		logg.Info("http/login", "Login failed: "+err.Error())
		http.Error(w, "Invalid credentials.", http.StatusNotFound)
		return
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	logg.Info("http/login", "User logged in with user_id="+account.ID)

	s.respondWithToken(w, http.StatusOK, account)
}

// publishHandler adds a publication to the caller's timeline.
// Expects JSON body: {"text": "..."}
func (s *Server) publishHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if !s.actingAs(w, r, "http/timeline", userID) {
		return
	}

	var body publishRequest
	if !s.decode(w, r, "http/timeline", &body) {
		return
	}

	author, err := s.registry.PublisherByID(userID)
	if err != nil {
		writeError(w, "http/timeline", err)
		return
	}

	pub, err := author.Publish(body.Text, s.now().UTC())
	if err != nil {
		if errors.Is(err, chat.ErrInappropriateContent) {
			metrics.PublicationsRejected.Inc()
		}
		writeError(w, "http/timeline", err)
		return
	}
	metrics.Publications.Inc()
	logg.Info("http/timeline", "Publication created by user_id="+userID)

	writeJSON(w, http.StatusCreated, toPost(pub))
}

// timelineHandler lists an account's own publications, oldest first.
func (s *Server) timelineHandler(w http.ResponseWriter, r *http.Request) {
	publisher, err := s.registry.PublisherByID(r.PathValue("userID"))
	if err != nil {
		writeError(w, "http/timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(publisher.Timeline(), toPostAt))
}

// wallHandler lists the account's publications merged with its followees', oldest first.
func (s *Server) wallHandler(w http.ResponseWriter, r *http.Request) {
	publisher, err := s.registry.PublisherByID(r.PathValue("userID"))
	if err != nil {
		writeError(w, "http/wall", err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(publisher.Wall(), toPostAt))
}

// followHandler makes followerId follow followeeId.
// Expects JSON body: {"followerId": "...", "followeeId": "..."}
func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	var body followRequest
	if !s.decode(w, r, "http/followings", &body) {
		return
	}
	if !s.actingAs(w, r, "http/followings", body.FollowerID) {
		return
	}

	follower, err := s.registry.PublisherByID(body.FollowerID)
	if err != nil {
		writeError(w, "http/followings", err)
		return
	}
	followee, err := s.registry.PublisherByID(body.FolloweeID)
	if err != nil {
		writeError(w, "http/followings", err)
		return
	}
	if err := follower.Follow(followee); err != nil {
		writeError(w, "http/followings", err)
		return
	}
	metrics.Follows.Inc()
	logg.Info("http/followings", "User "+body.FollowerID+" followed "+body.FolloweeID)

	w.WriteHeader(http.StatusCreated)
}

// followeesHandler lists who followerID follows, in follow order.
func (s *Server) followeesHandler(w http.ResponseWriter, r *http.Request) {
	follower, err := s.registry.PublisherByID(r.PathValue("followerID"))
	if err != nil {
		writeError(w, "http/followings", err)
		return
	}
	users := lo.Map(follower.Followees(), func(p *chat.Publisher, _ int) models.User {
		return toUser(p.Account())
	})
	writeJSON(w, http.StatusOK, users)
}

// --- Helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, module string, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logg.Error(module, "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			logg.Info(module, "Request rejected by validation")
			http.Error(w, fmt.Sprintf("%s is invalid (%s)", verrs[0].Field(), verrs[0].Tag()), http.StatusBadRequest)
			return false
		}
		logg.Error(module, "Validation failed", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// actingAs checks the token subject against the account the request acts for.
func (s *Server) actingAs(w http.ResponseWriter, r *http.Request, module, accountID string) bool {
	subject, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info(module, "Unauthorized request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if subject != accountID {
		logg.Info(module, "Token subject does not match user_id="+accountID)
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, account chat.Account) {
	token, err := middleware.IssueToken(s.secret, account.ID, s.tokenTTL, s.tokenNow())
	if err != nil {
		logg.Error("http/auth", "Failed to generate token", err)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, authenticatedUser{User: toUser(account), Token: token})
}

func writeError(w http.ResponseWriter, module string, err error) {
	switch chat.KindOf(err) {
	case chat.KindValidation, chat.KindConflict:
		logg.Info(module, "Request rejected: "+err.Error())
		http.Error(w, err.Error(), http.StatusBadRequest)
	case chat.KindNotFound:
		logg.Info(module, "Not found: "+err.Error())
		http.Error(w, err.Error(), http.StatusNotFound)
	case chat.KindUnauthorized:
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		logg.Error(module, "Request failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logg.Error("http", "Failed to encode response", err)
	}
}

func toUser(a chat.Account) models.User {
	return models.User{ID: a.ID, Username: a.Name, About: a.About}
}

func toPost(p chat.Publication) models.Post {
	return models.Post{
		ID:       postID(p).String(),
		AuthorID: p.AuthorID,
		Text:     p.Message,
		Created:  p.At,
	}
}

func toPostAt(p chat.Publication, _ int) models.Post {
	return toPost(p)
}

func postID(p chat.Publication) uuid.UUID {
	return uuid.NewSHA1(postNamespace, []byte(fmt.Sprintf("%s/%d", p.AuthorID, p.Seq)))
}
