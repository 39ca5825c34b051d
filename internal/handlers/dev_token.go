package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/tidylink/internal/auth"
	"github.com/charlesng35/tidylink/internal/services"
	"github.com/charlesng35/tidylink/pkg/errors"
	"github.com/charlesng35/tidylink/pkg/response"
)

// DevTokenHandler issues access tokens for seeded users. The dev backend has no
// login flow; this is how the CLI and tests obtain a bearer token.
type DevTokenHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

// NewDevTokenHandler constructs a dev token handler.
func NewDevTokenHandler(users *services.UserService, jwt *iauth.JWTService) *DevTokenHandler {
	return &DevTokenHandler{users: users, jwt: jwt}
}

// IssueTokenRequest names the user to impersonate.
type IssueTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// Issue returns a signed access token for the user.
func (h *DevTokenHandler) Issue(c *gin.Context) {
	var req IssueTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Get(requestContext(c), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
	})
	if err != nil {
		response.Error(c, errors.Wrap(err, "failed to issue token"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int64(h.jwt.TTL().Seconds()),
		"user": gin.H{
			"id":   user.ID,
			"name": user.Name,
			"role": user.Role,
		},
	})
}
