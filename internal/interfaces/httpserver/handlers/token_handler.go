package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipmarket-server/internal/domain/market"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/interfaces/httpserver/requests"
	"ipmarket-server/internal/interfaces/httpserver/responses"
	"ipmarket-server/internal/utils/platformerrors"
)

// TokenHandler exposes minting and token reads.
type TokenHandler struct {
	service market.Service
	log     zerolog.Logger
}

// NewTokenHandler constructs the handler.
func NewTokenHandler(service market.Service, log zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		log:     log.With().Str("handler", "token").Logger(),
	}
}

// Mint handles POST /v1/tokens/mint. Multipart form: the content file plus
// name, description, parent_token_id and license_terms (JSON object)
// fields. The file is pinned, then the metadata document, then the token
// is minted pointing at the metadata URI.
func (h *TokenHandler) Mint(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "1a4b5c6d-7e8f-4ab9-c0cd-3e1f4a5b6c7d")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "content file is required", "2b5c6d7e-8f9a-4bc0-d1de-4f2a5b6c7d8e")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "content file is unreadable", "3c6d7e8f-9a0b-4cd1-e2ef-5a3b6c7d8e9f")
		return
	}
	defer file.Close()

	params := market.MintParams{
		Creator:       wallet,
		Name:          c.PostForm("name"),
		Description:   c.PostForm("description"),
		ParentTokenID: c.PostForm("parent_token_id"),
		FileName:      fileHeader.Filename,
		File:          file,
	}
	if terms := c.PostForm("license_terms"); terms != "" {
		if err := json.Unmarshal([]byte(terms), &params.LicenseTerms); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "license_terms must be a JSON object", "4d7e8f9a-0b1c-4de2-f3fa-6b4c7d8e9f0a")
			return
		}
	}

	result, err := h.service.Mint(c.Request.Context(), params)
	if err != nil {
		responses.HandleError(c, err, "failed to mint token")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// BuyAccess handles POST /v1/tokens/:token_id/access.
func (h *TokenHandler) BuyAccess(c *gin.Context) {
	wallet := auth.WalletAddress(c)
	if wallet == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "5e8f9a0b-1c2d-4ef3-a4ab-7c5d8e9f0a1b")
		return
	}

	var req requests.BuyAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "6f9a0b1c-2d3e-4fa4-b5bc-8d6e9f0a1b2c")
		return
	}

	txHash, err := h.service.BuyAccess(c.Request.Context(), wallet, c.Param("token_id"), req.Periods, req.Fee)
	if err != nil {
		responses.HandleError(c, err, "failed to buy access")
		return
	}

	c.JSON(http.StatusOK, responses.TxResponse{TxHash: txHash})
}

// CheckAccess handles GET /v1/tokens/:token_id/access. It reports whether
// the caller's wallet, or an explicit ?user= address, holds a live access
// entitlement.
func (h *TokenHandler) CheckAccess(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		user = auth.WalletAddress(c)
	}
	if user == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "wallet identity required", "7a0b1c2d-3e4f-4ab5-c6cd-9e7f0a1b2c3d")
		return
	}

	hasAccess, err := h.service.HasAccess(c.Request.Context(), c.Param("token_id"), user)
	if err != nil {
		responses.HandleError(c, err, "failed to read access")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token_id":   c.Param("token_id"),
		"user":       user,
		"has_access": hasAccess,
	})
}

// Get handles GET /v1/tokens/:token_id, the owner and metadata URI.
func (h *TokenHandler) Get(c *gin.Context) {
	tokenID := c.Param("token_id")

	owner, err := h.service.TokenOwner(c.Request.Context(), tokenID)
	if err != nil {
		responses.HandleError(c, err, "failed to read token owner")
		return
	}
	uri, err := h.service.TokenURI(c.Request.Context(), tokenID)
	if err != nil {
		responses.HandleError(c, err, "failed to read token uri")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token_id":  tokenID,
		"owner":     owner,
		"token_uri": uri,
	})
}
