package server

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
)

const maxPassSize = 16 << 10

func (s *Server) GetAccessPass(c *gin.Context) {
	channelID, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.accessPasses.Get(c.Request.Context(), c.Param("holder"), channelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

// GetAccessPassToken returns the stored pass as a compact EdDSA JWT.
func (s *Server) GetAccessPassToken(c *gin.Context) {
	channelID, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	token, err := s.accessPasses.Token(c.Request.Context(), c.Param("holder"), channelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"token": token})
}

func (s *Server) AccessPassPublicKey(c *gin.Context) {
	respondData(c, gin.H{
		"algorithm":  "ed25519",
		"public_key": base64.StdEncoding.EncodeToString(s.accessPasses.PublicKey()),
	})
}

// VerifyAccessPass takes either the signed JSON pass document or its JWT form
// as the raw request body.
func (s *Server) VerifyAccessPass(c *gin.Context) {
	doc, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPassSize))
	if err != nil || len(doc) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	var payload *accesspass.Payload
	if trimmed := bytes.TrimSpace(doc); len(trimmed) > 0 && trimmed[0] == '{' {
		payload, err = s.accessPasses.Verify(c.Request.Context(), trimmed)
	} else {
		payload, err = s.accessPasses.VerifyToken(c.Request.Context(), string(trimmed))
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, payload)
}
