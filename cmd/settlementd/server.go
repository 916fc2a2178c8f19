package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vicodeox/stackAuc/core"
	"github.com/vicodeox/stackAuc/engine"
	"github.com/vicodeox/stackAuc/engineapi"
)

// Server exposes the settlement engine over HTTP. Every handler is a
// thin adapter: decode, call the engine, map the error taxonomy to a
// response. No settlement logic lives here.
type Server struct {
	engine *engine.Engine
	log    *zap.Logger
}

func NewServer(eng *engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: eng, log: log}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/receipts/public-key", s.publicKey)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auctions", s.createAuction)
		v1.GET("/auctions/:id", s.getAuction)
		v1.POST("/auctions/:id/bids", s.placeBid)
		v1.POST("/auctions/:id/pause", s.pauseAuction)
		v1.POST("/auctions/:id/resume", s.resumeAuction)
		v1.POST("/auctions/:id/end", s.endAuction)
		v1.POST("/auctions/:id/cancel", s.cancelAuction)
		v1.POST("/auctions/:id/finalize", s.finalize)
		v1.POST("/auctions/:id/refunds", s.refundEscrow)
		v1.PUT("/auctions/:id/split", s.setPaymentSplit)
		v1.GET("/auctions/:id/split", s.getPaymentSplit)
		v1.GET("/auctions/:id/escrow/:bidder", s.getEscrowBalance)
		v1.GET("/auctions/:id/receipt", s.getReceipt)
		v1.GET("/security-events/:id", s.getSecurityEvent)

		admin := v1.Group("/admin")
		{
			admin.POST("/admins", s.addAdmin)
			admin.DELETE("/admins", s.removeAdmin)
			admin.POST("/moderators", s.addModerator)
			admin.DELETE("/moderators", s.removeModerator)
			admin.POST("/whitelist", s.addToWhitelist)
			admin.DELETE("/whitelist", s.removeFromWhitelist)
			admin.POST("/whitelist-required", s.setWhitelistRequired)
			admin.POST("/emergency-stop", s.setEmergencyStop)
			admin.POST("/fee-rate", s.setFeeRate)
		}
	}
	return r
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := engineapi.NewErrorResponse(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func auctionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, engineapi.ErrorResponse{
			Code:  engineapi.CodeInvalidParameters,
			Error: "auction id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func bindJSON[T any](c *gin.Context) (*T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, engineapi.ErrorResponse{
			Code:  engineapi.CodeInvalidParameters,
			Error: err.Error(),
		})
		return nil, false
	}
	return &req, true
}

func (s *Server) createAuction(c *gin.Context) {
	req, ok := bindJSON[engineapi.CreateAuctionRequest](c)
	if !ok {
		return
	}
	id, err := s.engine.CreateAuction(c.Request.Context(), req.Caller, engine.CreateAuctionParams{
		ItemID:          req.ItemID,
		Kind:            core.AuctionKind(req.Kind),
		Token:           req.Token,
		StartPrice:      req.StartPrice,
		ReservePrice:    req.ReservePrice,
		EndPrice:        req.EndPrice,
		StartTick:       req.StartTick,
		Duration:        req.Duration,
		AntiSnipeWindow: req.AntiSnipeWindow,
		ExtensionTicks:  req.ExtensionTicks,
		Split:           req.Split,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, engineapi.CreateAuctionResponse{AuctionID: id})
}

func (s *Server) getAuction(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	a, err := s.engine.GetAuction(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	resolved, err := s.engine.GetAuctionStatus(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	price, err := s.engine.GetCurrentPrice(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, engineapi.AuctionResponse{
		Auction:       a,
		ResolvedState: resolved,
		CurrentPrice:  price,
	})
}

func (s *Server) placeBid(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	req, ok := bindJSON[engineapi.PlaceBidRequest](c)
	if !ok {
		return
	}
	res, err := s.engine.PlaceBid(c.Request.Context(), req.Bidder, id, req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// lifecycle wraps the creator-only transitions sharing the caller-only
// request shape.
func (s *Server) lifecycle(c *gin.Context, op func(caller string, id uint64) error) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	req, ok := bindJSON[engineapi.CallerRequest](c)
	if !ok {
		return
	}
	if err := op(req.Caller, id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auction_id": id})
}

func (s *Server) pauseAuction(c *gin.Context) {
	s.lifecycle(c, func(caller string, id uint64) error {
		return s.engine.PauseAuction(c.Request.Context(), caller, id)
	})
}

func (s *Server) resumeAuction(c *gin.Context) {
	s.lifecycle(c, func(caller string, id uint64) error {
		return s.engine.ResumeAuction(c.Request.Context(), caller, id)
	})
}

func (s *Server) endAuction(c *gin.Context) {
	s.lifecycle(c, func(caller string, id uint64) error {
		return s.engine.EndAuction(c.Request.Context(), caller, id)
	})
}

func (s *Server) cancelAuction(c *gin.Context) {
	s.lifecycle(c, func(caller string, id uint64) error {
		return s.engine.CancelAuction(c.Request.Context(), caller, id)
	})
}

func (s *Server) finalize(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	req, ok := bindJSON[engineapi.CallerRequest](c)
	if !ok {
		return
	}
	receipt, err := s.engine.Finalize(c.Request.Context(), req.Caller, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) refundEscrow(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	req, ok := bindJSON[engineapi.RefundRequest](c)
	if !ok {
		return
	}
	if err := s.engine.RefundEscrow(c.Request.Context(), req.Caller, id, req.Bidder); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auction_id": id, "bidder": req.Bidder})
}

func (s *Server) setPaymentSplit(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	req, ok := bindJSON[engineapi.SplitRequest](c)
	if !ok {
		return
	}
	if err := s.engine.SetPaymentSplit(c.Request.Context(), req.Caller, id, req.Split); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auction_id": id})
}

func (s *Server) getPaymentSplit(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	split, err := s.engine.GetPaymentSplit(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, split)
}

func (s *Server) getEscrowBalance(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	bal, err := s.engine.GetEscrowBalance(id, c.Param("bidder"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (s *Server) getReceipt(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	receipt, signed, err := s.engine.GetSettlementReceipt(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, engineapi.ReceiptResponse{Receipt: receipt, Signed: signed})
}

func (s *Server) getSecurityEvent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, engineapi.ErrorResponse{
			Code:  engineapi.CodeInvalidParameters,
			Error: "event id must be a positive integer",
		})
		return
	}
	ev, err := s.engine.GetSecurityEvent(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, engineapi.NewSecurityEventResponse(ev))
}

func (s *Server) publicKey(c *gin.Context) {
	pemStr, err := s.engine.SignerPublicKeyPEM()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusOK, pemStr)
}

// roleChange wraps the principal-granting admin endpoints.
func (s *Server) roleChange(c *gin.Context, op func(caller, principal string) error) {
	req, ok := bindJSON[engineapi.PrincipalRequest](c)
	if !ok {
		return
	}
	if err := op(req.Caller, req.Principal); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"principal": req.Principal})
}

func (s *Server) addAdmin(c *gin.Context)       { s.roleChange(c, s.engine.AddAdmin) }
func (s *Server) removeAdmin(c *gin.Context)    { s.roleChange(c, s.engine.RemoveAdmin) }
func (s *Server) addModerator(c *gin.Context)   { s.roleChange(c, s.engine.AddModerator) }
func (s *Server) removeModerator(c *gin.Context) {
	s.roleChange(c, s.engine.RemoveModerator)
}
func (s *Server) addToWhitelist(c *gin.Context) { s.roleChange(c, s.engine.AddToWhitelist) }
func (s *Server) removeFromWhitelist(c *gin.Context) {
	s.roleChange(c, s.engine.RemoveFromWhitelist)
}

func (s *Server) setWhitelistRequired(c *gin.Context) {
	req, ok := bindJSON[engineapi.FlagRequest](c)
	if !ok {
		return
	}
	if err := s.engine.SetWhitelistRequired(req.Caller, req.Enabled); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whitelist_required": req.Enabled})
}

func (s *Server) setEmergencyStop(c *gin.Context) {
	req, ok := bindJSON[engineapi.FlagRequest](c)
	if !ok {
		return
	}
	if err := s.engine.SetEmergencyStop(req.Caller, req.Enabled); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"emergency_stop": req.Enabled})
}

func (s *Server) setFeeRate(c *gin.Context) {
	req, ok := bindJSON[engineapi.FeeRateRequest](c)
	if !ok {
		return
	}
	if err := s.engine.SetFeeRate(req.Caller, req.FeeRateBps); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee_rate_bps": req.FeeRateBps})
}
