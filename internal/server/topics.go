package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	aggdomain "github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
)

type createTopicRequest struct {
	ChannelID    uint64    `json:"channel_id" validate:"required"`
	ContentRef   string    `json:"content_ref" validate:"required,max=2048"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	MinValue     int64     `json:"min_value"`
	MaxValue     int64     `json:"max_value"`
	DefaultValue int64     `json:"default_value"`
}

// submitRequest carries the ciphertext base64 encoded. Plaintext values are
// never accepted over the wire.
type submitRequest struct {
	Ciphertext []byte `json:"ciphertext" validate:"required"`
	WeightHint uint64 `json:"weight_hint"`
}

func (s *Server) CreateTopic(c *gin.Context) {
	var req createTopicRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.topicSvc.CreateTopic(c.Request.Context(), topicdomain.CreateTopicRequest{
		ChannelID:    req.ChannelID,
		ContentRef:   strings.TrimSpace(req.ContentRef),
		EndTime:      req.EndTime,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		DefaultValue: req.DefaultValue,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) GetTopic(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.topicSvc.GetTopic(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) CloseTopic(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.topicSvc.CloseIfExpired(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) Submit(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req submitRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.aggregationSvc.Submit(c.Request.Context(), aggdomain.SubmitRequest{
		TopicID:    id,
		Ciphertext: encdomain.Ciphertext(req.Ciphertext),
		WeightHint: req.WeightHint,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

// Finalize answers 202 while the decryption of the aggregate is outstanding.
func (s *Server) Finalize(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.aggregationSvc.Finalize(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if resp.Pending {
		c.JSON(http.StatusAccepted, gin.H{"data": resp})
		return
	}
	respondData(c, resp)
}

func (s *Server) TopicReport(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pdf, err := s.reports.TopicReport(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="topic-`+strconv.FormatUint(id, 10)+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
