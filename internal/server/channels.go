package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
)

type tierRequest struct {
	DurationClass string `json:"duration_class" validate:"required,oneof=day week month year"`
	Price         int64  `json:"price" validate:"gte=0"`
}

type createChannelRequest struct {
	Name         string        `json:"name" validate:"required,max=200"`
	PaymentToken string        `json:"payment_token" validate:"omitempty,max=32"`
	Tiers        []tierRequest `json:"tiers" validate:"required,min=1,max=16,dive"`
}

func (s *Server) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	tiers := make([]channeldomain.TierInput, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		tiers = append(tiers, channeldomain.TierInput{DurationClass: t.DurationClass, Price: t.Price})
	}

	resp, err := s.channelSvc.CreateChannel(c.Request.Context(), channeldomain.CreateChannelRequest{
		Name:         strings.TrimSpace(req.Name),
		PaymentToken: strings.TrimSpace(req.PaymentToken),
		Tiers:        tiers,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) ListChannels(c *gin.Context) {
	var query struct {
		AfterID uint64 `form:"after_id"`
		Limit   int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.channelSvc.ListChannels(c.Request.Context(), channeldomain.ListRequest{
		AfterID: query.AfterID,
		Limit:   query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) GetChannel(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.channelSvc.GetChannel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) GetChannelTopics(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.topicSvc.GetChannelTopics(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) GetChannelTopicCount(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	count, err := s.topicSvc.GetChannelTopicCount(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"channel_id": id, "count": count})
}
