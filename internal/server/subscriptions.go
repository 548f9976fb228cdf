package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	subdomain "github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
)

type subscribeRequest struct {
	TierIndex    *int   `json:"tier_index" validate:"required,gte=0"`
	PaymentToken string `json:"payment_token" validate:"omitempty,max=32"`
	Amount       uint64 `json:"amount"`
}

func (s *Server) Subscribe(c *gin.Context) {
	channelID, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req subscribeRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Subscribe(c.Request.Context(), subdomain.SubscribeRequest{
		ChannelID:    channelID,
		TierIndex:    *req.TierIndex,
		PaymentToken: strings.TrimSpace(req.PaymentToken),
		Amount:       req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	channelID, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.ListSubscriptions(c.Request.Context(), channelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) GetSubscription(c *gin.Context) {
	channelID, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.GetSubscription(c.Request.Context(), c.Param("subscriber"), channelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) IsActive(c *gin.Context) {
	channelID, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	subscriber := identity.Normalize(c.Param("subscriber"))

	active, err := s.subscriptionSvc.IsActive(c.Request.Context(), subscriber, channelID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"channel_id": channelID, "subscriber": subscriber, "active": active})
}
