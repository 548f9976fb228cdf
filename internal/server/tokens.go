package server

import (
	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"go.uber.org/zap"
)

type creditRequest struct {
	Holder string `json:"holder" validate:"required,max=255"`
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

func (s *Server) EncryptionPublicKey(c *gin.Context) {
	respondData(c, s.scheme.PublicKey())
}

func (s *Server) GetBalance(c *gin.Context) {
	resp, err := s.paymentSvc.Balance(c.Request.Context(), c.Param("token"), c.Param("holder"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

// Credit is a development faucet. It is only routed when payment.faucet_enabled is set.
func (s *Server) Credit(c *gin.Context) {
	var req creditRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.Credit(c.Request.Context(), c.Param("token"), identity.Normalize(req.Holder), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("faucet credit",
		zap.String("token", resp.Token),
		zap.String("holder", resp.Holder),
		zap.Uint64("amount", req.Amount),
	)
	respondData(c, resp)
}
