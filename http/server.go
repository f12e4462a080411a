// Package http exposes the facilitator engine over the x402 HTTP surface:
// GET /supported plus POST /verify and POST /settle, with info and health
// endpoints for operators.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	hyper402 "github.com/waqaswahid1/hyper402"
	"github.com/waqaswahid1/hyper402/facilitator"
)

// Server is the facilitator HTTP service.
type Server struct {
	engine      *gin.Engine
	facilitator *facilitator.Facilitator
	registry    *hyper402.Registry
	logger      *slog.Logger
}

// NewServer wires the facilitator engine into a gin router.
func NewServer(f *facilitator.Facilitator, registry *hyper402.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:      gin.New(),
		facilitator: f,
		registry:    registry,
		logger:      logger,
	}

	s.engine.Use(gin.Recovery())
	s.engine.GET("/", s.handleInfo)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/supported", s.handleSupported)
	s.engine.POST("/verify", s.handleVerify)
	s.engine.POST("/settle", s.handleSettle)

	return s
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the server on the given address and blocks.
func (s *Server) Run(addr string) error {
	s.logger.Info("facilitator listening", "addr", addr)
	return s.engine.Run(addr)
}

// verifyRequest mirrors facilitator.VerifyRequest with pointer fields so
// missing members are distinguishable from zero values.
type verifyRequest struct {
	X402Version         int                           `json:"x402Version"`
	PaymentPayload      *hyper402.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements *hyper402.PaymentRequirements `json:"paymentRequirements"`
}

type settleRequest struct {
	X402Version         int                           `json:"x402Version"`
	PaymentPayload      *hyper402.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements *hyper402.PaymentRequirements `json:"paymentRequirements"`
}

func (s *Server) handleInfo(c *gin.Context) {
	chains := s.registry.All()

	networks := make([]gin.H, 0, len(chains))
	for _, chain := range chains {
		networks = append(networks, gin.H{
			"network":       chain.Network,
			"chainId":       chain.ChainID,
			"name":          chain.Name,
			"currency":      chain.NativeCurrency.Symbol,
			"token":         chain.Token.Symbol + " (" + chain.Token.Address + ")",
			"blockExplorer": chain.BlockExplorer,
		})
	}

	info := gin.H{
		"name":        "hyper402 facilitator",
		"description": "x402 payment facilitator for any EVM chain with EIP-3009 tokens",
		"networks":    networks,
		"endpoints": gin.H{
			"GET /supported": "Get supported schemes and networks",
			"POST /verify":   "Verify a payment payload",
			"POST /settle":   "Settle a verified payment",
		},
	}
	if address, ok := s.facilitator.WalletAddress(); ok {
		info["facilitatorWallet"] = address.Hex()
	}

	c.JSON(http.StatusOK, info)
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok"}
	if address, ok := s.facilitator.WalletAddress(); ok {
		health["facilitatorWallet"] = address.Hex()
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, s.facilitator.Supported())
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.PaymentPayload == nil || req.PaymentRequirements == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": hyper402.ErrMissingFields.Error()})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verify handler panic", "panic", r)
			c.JSON(http.StatusInternalServerError, hyper402.VerifyResponse{
				IsValid:       false,
				InvalidReason: hyper402.ReasonUnexpectedVerifyError,
			})
		}
	}()

	s.logger.Info("verifying payment",
		"network", req.PaymentPayload.Network,
		"payer", req.PaymentPayload.Payload.Authorization.From)

	resp := s.facilitator.Verify(c.Request.Context(), *req.PaymentPayload, *req.PaymentRequirements)

	if resp.IsValid {
		s.logger.Info("verification passed", "payer", resp.Payer)
	} else {
		s.logger.Info("verification failed", "reason", resp.InvalidReason, "payer", resp.Payer)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSettle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.PaymentPayload == nil || req.PaymentRequirements == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": hyper402.ErrMissingFields.Error()})
		return
	}

	network := req.PaymentPayload.Network
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("settle handler panic", "panic", r)
			c.JSON(http.StatusInternalServerError, hyper402.SettleResponse{
				Success:     false,
				ErrorReason: hyper402.ReasonSettlementFailed,
				Network:     network,
			})
		}
	}()

	s.logger.Info("settling payment",
		"network", network,
		"payer", req.PaymentPayload.Payload.Authorization.From)

	resp := s.facilitator.Settle(c.Request.Context(), *req.PaymentPayload, *req.PaymentRequirements)

	if resp.Success {
		s.logger.Info("settlement succeeded", "tx", resp.Transaction, "network", resp.Network)
	} else {
		s.logger.Warn("settlement failed", "reason", resp.ErrorReason, "network", resp.Network)
	}

	c.JSON(http.StatusOK, resp)
}
