package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reportit/middleware"
	"reportit/services"
)

type AuthController struct {
	auth         *services.AuthService
	cookieTTL    time.Duration
	secureCookie bool
}

func NewAuthController(auth *services.AuthService, cookieTTL time.Duration, secureCookie bool) *AuthController {
	return &AuthController{auth: auth, cookieTTL: cookieTTL, secureCookie: secureCookie}
}

func (ac *AuthController) Signup(c *gin.Context) {
	var input services.SignupInput
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := ac.auth.Signup(ctx, input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Registered - awaiting admin approval"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (ac *AuthController) Login(c *gin.Context) {
	var input loginRequest
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := ac.auth.Login(ctx, input.Email, input.Password, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.SetCookie("token", res.Token, int(ac.cookieTTL.Seconds()), "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, res)
}

func (ac *AuthController) Logout(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := ac.auth.Logout(ctx, userID, requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	c.SetCookie("token", "", -1, "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out and time recorded"})
}

func (ac *AuthController) Me(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	me, err := ac.auth.Me(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}
