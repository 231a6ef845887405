// Package devserver is an in-memory stand-in for the Stickies backend. It
// implements the auth and notes endpoints closely enough to exercise the
// whole client against real HTTP, including credential refresh.
package devserver

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const refreshCookie = "refresh_token"

type user struct {
	Name         string
	Email        string
	PasswordHash []byte
}

// Note mirrors the wire shape of a stored note.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// Server is the fake backend. Construct with New, mount via Handler.
type Server struct {
	signingKey []byte
	accessTTL  time.Duration
	engine     *gin.Engine

	lock     sync.Mutex
	users    map[string]*user
	otps     map[string]string
	refresh  map[string]string // refresh token -> email
	notes    map[string][]Note // email -> notes
	nextCode func() string
}

// Option modifies a Server during construction.
type Option func(*Server)

// WithAccessTTL sets the access token lifetime. Short lifetimes force the
// client through the refresh path.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// New creates a devserver with a random signing key.
func New(options ...Option) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		signingKey: []byte(uuid.NewString()),
		accessTTL:  15 * time.Minute,
		users:      make(map[string]*user),
		otps:       make(map[string]string),
		refresh:    make(map[string]string),
		notes:      make(map[string][]Note),
	}
	s.nextCode = func() string {
		return fmt.Sprintf("%04d", rand.Intn(10000))
	}
	for _, opt := range options {
		opt(s)
	}

	engine := gin.New()
	users := engine.Group("/users")
	{
		users.POST("/login", s.handleLogin)
		users.POST("/logout", s.handleLogout)
		users.POST("/signup", s.handleSignUp)
		users.POST("/checkEmail", s.handleCheckEmail)
		users.POST("/forgotPassword", s.handleForgotPassword)
		users.POST("/resetPassword", s.handleResetPassword)
		users.POST("/refresh-token", s.handleRefreshToken)
	}
	api := engine.Group("/notes")
	api.Use(s.authMiddleware())
	{
		api.GET("", s.handleListNotes)
		api.POST("", s.handleCreateNote)
		api.PATCH("", s.handleUpdateNote)
		api.PATCH("/updateOrder", s.handleUpdateOrder)
		api.DELETE("/:id", s.handleRemoveNote)
	}
	s.engine = engine
	return s
}

// Handler exposes the server as an http.Handler for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Register adds a user directly, bypassing the signup flow.
func (s *Server) Register(name, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.users[email] = &user{Name: name, Email: email, PasswordHash: hash}
	return nil
}

// LastOTP returns the code most recently issued to the address.
func (s *Server) LastOTP(email string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.otps[email]
}

// SeedNotes replaces the user's notes.
func (s *Server) SeedNotes(email string, seeded []Note) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.notes[email] = append([]Note(nil), seeded...)
}

func (s *Server) issueTokens(c *gin.Context, email string) error {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return err
	}

	refreshToken := uuid.NewString()
	s.lock.Lock()
	s.refresh[refreshToken] = email
	s.lock.Unlock()

	c.Header("Authorization", "Bearer "+signed)
	c.SetCookie(refreshCookie, refreshToken, int((30 * 24 * time.Hour).Seconds()), "/", "", false, true)
	return nil
}

func (s *Server) subjectFor(tokenStr string) (string, error) {
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return token.Claims.GetSubject()
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := s.subjectFor(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set("email", subject)
		c.Next()
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s.lock.Lock()
	account, ok := s.users[req.Email]
	s.lock.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := s.issueTokens(c, req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(refreshCookie); err == nil {
		s.lock.Lock()
		delete(s.refresh, token)
		s.lock.Unlock()
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleSignUp(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Otp      string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s.lock.Lock()
	code, issued := s.otps[req.Email]
	s.lock.Unlock()
	if !issued || code != req.Otp {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid otp"})
		return
	}

	if err := s.Register(req.Name, req.Email, req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	s.lock.Lock()
	delete(s.otps, req.Email)
	s.lock.Unlock()

	if err := s.issueTokens(c, req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleCheckEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s.lock.Lock()
	_, exists := s.users[req.Email]
	if !exists {
		s.otps[req.Email] = s.nextCode()
	}
	s.lock.Unlock()

	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// Whether or not the account exists, the answer is the same.
	s.lock.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.otps[req.Email] = s.nextCode()
	}
	s.lock.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
		Otp         string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s.lock.Lock()
	code, issued := s.otps[req.Email]
	account, exists := s.users[req.Email]
	s.lock.Unlock()
	if !issued || !exists || code != req.Otp {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid otp"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset password"})
		return
	}
	s.lock.Lock()
	account.PasswordHash = hash
	delete(s.otps, req.Email)
	s.lock.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleRefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	s.lock.Lock()
	email, ok := s.refresh[token]
	if ok {
		delete(s.refresh, token) // refresh tokens are single-use
	}
	s.lock.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := s.issueTokens(c, email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleListNotes(c *gin.Context) {
	email := c.GetString("email")
	s.lock.Lock()
	all := append([]Note(nil), s.notes[email]...)
	s.lock.Unlock()
	c.JSON(http.StatusOK, all)
}

func (s *Server) handleCreateNote(c *gin.Context) {
	var note Note
	if err := c.ShouldBindJSON(&note); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	email := c.GetString("email")
	note.ID = uuid.NewString()

	s.lock.Lock()
	note.Order = len(s.notes[email])
	s.notes[email] = append(s.notes[email], note)
	s.lock.Unlock()
	c.JSON(http.StatusOK, note)
}

func (s *Server) handleUpdateNote(c *gin.Context) {
	var note Note
	if err := c.ShouldBindJSON(&note); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	email := c.GetString("email")

	s.lock.Lock()
	defer s.lock.Unlock()
	for i, existing := range s.notes[email] {
		if existing.ID == note.ID {
			note.Order = existing.Order
			s.notes[email][i] = note
			c.JSON(http.StatusOK, note)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
}

func (s *Server) handleUpdateOrder(c *gin.Context) {
	var ordered []Note
	if err := c.ShouldBindJSON(&ordered); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	email := c.GetString("email")

	s.lock.Lock()
	defer s.lock.Unlock()
	positions := make(map[string]int, len(ordered))
	for _, note := range ordered {
		positions[note.ID] = note.Order
	}
	for i, existing := range s.notes[email] {
		if order, ok := positions[existing.ID]; ok {
			s.notes[email][i].Order = order
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleRemoveNote(c *gin.Context) {
	email := c.GetString("email")
	id := c.Param("id")

	s.lock.Lock()
	defer s.lock.Unlock()
	for i, existing := range s.notes[email] {
		if existing.ID == id {
			s.notes[email] = append(s.notes[email][:i], s.notes[email][i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "ok"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
}
