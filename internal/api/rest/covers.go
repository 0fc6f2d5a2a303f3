package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenShutterCore/internal/api/websocket"
	"github.com/KevinKickass/OpenShutterCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SetPositionRequest struct {
	Position *int `json:"position" binding:"required"`
}

type ManualDriveRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

// Cover movement handlers
func (s *Server) openCover(c *gin.Context) {
	s.driveCover(c, s.lm.CoverManager().Open)
}

func (s *Server) closeCover(c *gin.Context) {
	s.driveCover(c, s.lm.CoverManager().Close)
}

func (s *Server) stopCover(c *gin.Context) {
	s.driveCover(c, s.lm.CoverManager().Stop)
}

func (s *Server) driveCover(c *gin.Context, op func(string) error) {
	deviceID := c.Param("id")
	if err := op(deviceID); err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("COVER_404", "Cover not found", nil))
		return
	}

	info, _ := s.lm.CoverManager().Get(deviceID)
	c.JSON(http.StatusOK, info)
}

func (s *Server) setCoverPosition(c *gin.Context) {
	var req SetPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Position == nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("COVER_400", "Invalid request body", nil))
		return
	}
	if *req.Position < 0 || *req.Position > 100 {
		c.JSON(http.StatusBadRequest, types.NewValidationError(map[string]string{
			"position": "must be between 0 and 100",
		}))
		return
	}

	deviceID := c.Param("id")
	if err := s.lm.CoverManager().SetPosition(deviceID, *req.Position); err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("COVER_404", "Cover not found", nil))
		return
	}

	info, _ := s.lm.CoverManager().Get(deviceID)
	c.JSON(http.StatusOK, info)
}

// calibrateCover runs the full calibration cycle. This drives the cover
// through three complete travels and can take minutes; the request blocks
// until the cycle finished.
func (s *Server) calibrateCover(c *gin.Context) {
	deviceID := c.Param("id")
	info, err := s.lm.CoverManager().Get(deviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("COVER_404", "Cover not found", nil))
		return
	}

	result, err := s.lm.Calibrator().Run(c.Request.Context(), deviceID, info.DeviceEnum)
	if err != nil {
		s.logger.Warn("Calibration failed",
			zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusConflict, types.NewErrorResponse("CALIBRATION_409", "Calibration failed", err.Error()))
		return
	}

	s.wsHub.Broadcast(websocket.NewMessage(websocket.MessageTypeCalibrationCompleted, result))
	c.JSON(http.StatusOK, result)
}

// Endpoint programming (motor-side limits)
func (s *Server) setUpperEndpoint(c *gin.Context) {
	s.stickCommandForCover(c, s.lm.Session().SetUpperEndpoint)
}

func (s *Server) setLowerEndpoint(c *gin.Context) {
	s.stickCommandForCover(c, s.lm.Session().SetLowerEndpoint)
}

func (s *Server) allowPairingOnDevice(c *gin.Context) {
	s.stickCommandForCover(c, s.lm.Session().AllowPairingOnDevice)
}

func (s *Server) manualDrive(c *gin.Context) {
	var req ManualDriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("COVER_400", "Invalid request body", err.Error()))
		return
	}

	if req.Direction == "up" {
		s.stickCommandForCover(c, s.lm.Session().ManualUp)
	} else {
		s.stickCommandForCover(c, s.lm.Session().ManualDown)
	}
}

// stickCommandForCover resolves the device enum and fires a raw stick
// command that bypasses the position estimator.
func (s *Server) stickCommandForCover(c *gin.Context, command func(deviceEnum string)) {
	deviceEnum, ok := s.lm.Session().Registry().Enum(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("COVER_404", "Cover not found", nil))
		return
	}

	command(deviceEnum)
	c.JSON(http.StatusOK, gin.H{"message": "command sent"})
}
