package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	aggdomain "github.com/railzwaylabs/cipherpoll/internal/aggregation/domain"
	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	paymentdomain "github.com/railzwaylabs/cipherpoll/internal/payment/domain"
	"github.com/railzwaylabs/cipherpoll/internal/report"
	subdomain "github.com/railzwaylabs/cipherpoll/internal/subscription/domain"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(RegisterLifecycle),
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Registry *prometheus.Registry

	ChannelSvc      channeldomain.Service
	TopicSvc        topicdomain.Service
	SubscriptionSvc subdomain.Service
	AggregationSvc  aggdomain.Service
	PaymentSvc      paymentdomain.Service
	Scheme          encdomain.Scheme
	AccessPasses    *accesspass.Factory
	Reports         *report.Generator
}

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	db       *gorm.DB
	registry *prometheus.Registry
	engine   *gin.Engine
	authz    *Authorizer

	channelSvc      channeldomain.Service
	topicSvc        topicdomain.Service
	subscriptionSvc subdomain.Service
	aggregationSvc  aggdomain.Service
	paymentSvc      paymentdomain.Service
	scheme          encdomain.Scheme
	accessPasses    *accesspass.Factory
	reports         *report.Generator
}

func New(p Params) (*Server, error) {
	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authz, err := NewAuthorizer(p.DB, p.Config.Admins)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:             p.Config,
		log:             p.Log.Named("server"),
		db:              p.DB,
		registry:        p.Registry,
		authz:           authz,
		channelSvc:      p.ChannelSvc,
		topicSvc:        p.TopicSvc,
		subscriptionSvc: p.SubscriptionSvc,
		aggregationSvc:  p.AggregationSvc,
		paymentSvc:      p.PaymentSvc,
		scheme:          p.Scheme,
		accessPasses:    p.AccessPasses,
		reports:         p.Reports,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.RequestLogger())
	if origins := s.cfg.HTTP.CORSAllowedOrigins; len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", HeaderCallerIdentity, HeaderSimulatedTime}
		r.Use(cors.New(corsConfig))
	}

	r.GET("/healthz", s.Health)
	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1", s.CallerIdentity(), s.SimulatedTime())

	channels := v1.Group("/channels")
	channels.POST("", s.CreateChannel)
	channels.GET("", s.ListChannels)
	channels.GET("/:id", s.GetChannel)
	channels.GET("/:id/topics", s.GetChannelTopics)
	channels.GET("/:id/topics/count", s.GetChannelTopicCount)
	channels.POST("/:id/subscriptions", s.Subscribe)
	channels.GET("/:id/subscriptions", s.ListSubscriptions)
	channels.GET("/:id/subscriptions/:subscriber", s.GetSubscription)
	channels.GET("/:id/subscriptions/:subscriber/active", s.IsActive)
	channels.GET("/:id/access-passes/:holder", s.GetAccessPass)
	channels.GET("/:id/access-passes/:holder/token", s.GetAccessPassToken)

	topics := v1.Group("/topics")
	topics.POST("", s.CreateTopic)
	topics.GET("/:id", s.GetTopic)
	topics.POST("/:id/close", s.CloseTopic)
	topics.POST("/:id/submissions", s.Submit)
	topics.POST("/:id/finalize", s.Finalize)
	topics.GET("/:id/report", s.TopicReport)

	v1.GET("/encryption/public-key", s.EncryptionPublicKey)
	v1.GET("/access-passes/public-key", s.AccessPassPublicKey)
	v1.POST("/access-passes/verify", s.VerifyAccessPass)

	v1.GET("/tokens/:token/balances/:holder", s.GetBalance)
	if s.cfg.Payment.FaucetEnabled {
		v1.POST("/tokens/:token/credit", s.RequireRole(), s.Credit)
	}

	r.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
	return r
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterLifecycle binds the HTTP listener to the fx lifecycle.
func RegisterLifecycle(lc fx.Lifecycle, s *Server, cfg config.Config) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
