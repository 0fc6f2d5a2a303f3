package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenShutterCore/internal/types"
	"github.com/gin-gonic/gin"
)

type LEDRequest struct {
	Mode  string `json:"mode" binding:"required,oneof=on off blink"`
	Count int    `json:"count"`
}

type EchoRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type StickModeRequest struct {
	Mode string `json:"mode" binding:"required,oneof=bootloader initial"`
}

// Stick handlers
func (s *Server) getStickStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Session().Status())
}

func (s *Server) connectStick(c *gin.Context) {
	s.lm.Session().Connect()
	c.JSON(http.StatusAccepted, gin.H{"message": "connect initiated"})
}

func (s *Server) disconnectStick(c *gin.Context) {
	s.lm.Session().Disconnect()
	c.JSON(http.StatusOK, gin.H{"message": "disconnected"})
}

func (s *Server) controlLED(c *gin.Context) {
	var req LEDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("STICK_400", "Invalid request body", err.Error()))
		return
	}

	switch req.Mode {
	case "on":
		s.lm.Session().LEDOn()
	case "off":
		s.lm.Session().LEDOff()
	case "blink":
		if req.Count < 1 || req.Count > 9 {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("STICK_400", "Blink count must be 1-9", nil))
			return
		}
		s.lm.Session().LEDBlink(req.Count)
	}

	c.JSON(http.StatusOK, gin.H{"message": "led command sent"})
}

func (s *Server) setEcho(c *gin.Context) {
	var req EchoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("STICK_400", "Invalid request body", nil))
		return
	}

	if *req.Enabled {
		s.lm.Session().EchoOn()
	} else {
		s.lm.Session().EchoOff()
	}
	c.JSON(http.StatusOK, gin.H{"message": "echo updated"})
}

// rebootStick restarts the dongle firmware. Only honored by the stick in
// bootloader mode.
func (s *Server) rebootStick(c *gin.Context) {
	s.lm.Session().RebootStick()
	c.JSON(http.StatusAccepted, gin.H{"message": "reboot requested"})
}

func (s *Server) setStickMode(c *gin.Context) {
	var req StickModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("STICK_400", "Invalid request body", err.Error()))
		return
	}

	if req.Mode == "bootloader" {
		s.lm.Session().EnterBootloaderMode()
	} else {
		s.lm.Session().EnterInitialMode()
	}
	c.JSON(http.StatusOK, gin.H{"message": "mode change requested"})
}
