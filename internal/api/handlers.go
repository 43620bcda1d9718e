package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/vietddude/sweeper/internal/core/domain"
	"github.com/vietddude/sweeper/internal/health"
)

const qrSize = 256

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Custodial Wallet API running on W Chain"})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.cfg.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	report := s.cfg.Health.CheckHealth(c.Request.Context())
	code := http.StatusOK
	if report.SystemStatus == health.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": report.SystemStatus})
}

func (s *Server) handleHealthDetailed(c *gin.Context) {
	if s.cfg.Health == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Health monitor disabled"})
		return
	}
	c.JSON(http.StatusOK, s.cfg.Health.CheckHealth(c.Request.Context()))
}

func (s *Server) handleCreateWallet(c *gin.Context) {
	wallet, err := s.wallets.CreateCustodialWallet(c.Request.Context())
	if err != nil {
		s.log.Error("failed to create wallet", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create wallet"})
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (s *Server) handleListWallets(c *gin.Context) {
	wallets, err := s.wallets.ListWallets(c.Request.Context())
	if err != nil {
		s.log.Error("failed to list wallets", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wallets"})
		return
	}
	if wallets == nil {
		wallets = []domain.WalletView{}
	}
	c.JSON(http.StatusOK, wallets)
}

func (s *Server) handleGetWallet(c *gin.Context) {
	wallet, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// handleWalletQR renders the deposit address as a PNG QR code.
func (s *Server) handleWalletQR(c *gin.Context) {
	wallet, ok := s.lookup(c)
	if !ok {
		return
	}
	png, err := qrcode.Encode(wallet.Address, qrcode.Medium, qrSize)
	if err != nil {
		s.log.Error("failed to render qr code", "address", wallet.Address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) lookup(c *gin.Context) (domain.WalletView, bool) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return domain.WalletView{}, false
	}
	wallet, err := s.wallets.FindWallet(c.Request.Context(), address)
	if errors.Is(err, domain.ErrWalletNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
		return domain.WalletView{}, false
	}
	if err != nil {
		s.log.Error("failed to find wallet", "address", address, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wallet"})
		return domain.WalletView{}, false
	}
	return wallet, true
}

func (s *Server) handleSweep(c *gin.Context) {
	// A client disconnect must not abandon transactions already in flight.
	report, err := s.sweeps.TriggerSweep(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, domain.ErrSweepInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Sweep already in progress"})
	case err != nil:
		s.log.Error("sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (s *Server) handleLastSweep(c *gin.Context) {
	report, err := s.sweeps.LastReport(c.Request.Context())
	if err != nil {
		s.log.Error("failed to load last sweep report", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sweep report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No sweep has run yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}
