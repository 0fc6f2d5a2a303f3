package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenShutterCore/internal/cover"
	"github.com/KevinKickass/OpenShutterCore/internal/storage"
	"github.com/KevinKickass/OpenShutterCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PairDeviceRequest struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
}

type RenameDeviceRequest struct {
	Name string `json:"name" binding:"required"`
}

type ImportDevicesRequest struct {
	Devices []ImportedDevice `json:"devices"`
}

type ImportedDevice struct {
	DeviceID         string  `json:"device_id"`
	DeviceEnum       string  `json:"device_enum"`
	Name             string  `json:"name"`
	OpenTimeSeconds  float64 `json:"open_time_seconds"`
	CloseTimeSeconds float64 `json:"close_time_seconds"`
	Position         *int    `json:"position"`
}

// Device handlers
func (s *Server) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": s.lm.CoverManager().List()})
}

func (s *Server) getDevice(c *gin.Context) {
	info, err := s.lm.CoverManager().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}
	c.JSON(http.StatusOK, info)
}

// pairDevice blocks until a motor answered the pairing broadcast or the
// pairing window expired. The motor has to be put into pairing mode first
// (power cycle or pairing button).
func (s *Server) pairDevice(c *gin.Context) {
	var req PairDeviceRequest
	// Body ist optional, Name und Profil kommen daraus.
	_ = c.ShouldBindJSON(&req)

	info, ok, err := s.lm.PairDevice(c.Request.Context(), req.Name, req.Profile)
	if err != nil {
		s.logger.Error("Pairing post-processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("PAIR_500", "Pairing failed", err.Error()))
		return
	}
	if !ok {
		c.JSON(http.StatusRequestTimeout, types.NewErrorResponse("PAIR_408",
			"No device responded within the pairing window", nil))
		return
	}

	c.JSON(http.StatusCreated, info)
}

func (s *Server) deleteDevice(c *gin.Context) {
	if err := s.lm.RemoveDevice(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device removed"})
}

func (s *Server) renameDevice(c *gin.Context) {
	var req RenameDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid request body", err.Error()))
		return
	}

	deviceID := c.Param("id")
	if err := s.lm.CoverManager().Rename(deviceID, req.Name); err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", nil))
		return
	}
	if err := s.lm.Storage().RenameDevice(c.Request.Context(), deviceID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to persist name", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device renamed"})
}

// importDevices restores paired devices from a backup, for example when
// moving an existing installation to a new host. The stick keeps pairing
// state on the motors, so re-importing IDs and enums is enough.
func (s *Server) importDevices(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IMPORT_400", "Failed to read body", err.Error()))
		return
	}

	if err := s.lm.ImportValidator().ValidateImport(body); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IMPORT_400", "Invalid import payload", err.Error()))
		return
	}

	var req ImportDevicesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("IMPORT_400", "Invalid import payload", err.Error()))
		return
	}

	imported := make([]string, 0, len(req.Devices))
	for _, device := range req.Devices {
		name := device.Name
		if name == "" {
			name = "Cover " + device.DeviceID
		}

		_, err := s.lm.Storage().SaveDevice(c.Request.Context(), storage.Device{
			DeviceID:   device.DeviceID,
			DeviceEnum: device.DeviceEnum,
			Name:       name,
			OpenTime:   device.OpenTimeSeconds,
			CloseTime:  device.CloseTimeSeconds,
			Position:   device.Position,
		})
		if err != nil {
			s.logger.Error("Failed to import device",
				zap.String("device_id", device.DeviceID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, types.NewErrorResponse("IMPORT_500", "Failed to persist device", err.Error()))
			return
		}

		s.lm.Session().Registry().Register(device.DeviceID, device.DeviceEnum)

		err = s.lm.CoverManager().AddCover(cover.AddCoverParams{
			DeviceID:   device.DeviceID,
			DeviceEnum: device.DeviceEnum,
			Name:       name,
			OpenTime:   time.Duration(device.OpenTimeSeconds * float64(time.Second)),
			CloseTime:  time.Duration(device.CloseTimeSeconds * float64(time.Second)),
			Position:   device.Position,
		})
		if err != nil {
			// Bereits verwaltet, Stammdaten sind trotzdem aktualisiert.
			s.logger.Warn("Device already managed",
				zap.String("device_id", device.DeviceID))
		}

		imported = append(imported, device.DeviceID)
	}

	c.JSON(http.StatusCreated, gin.H{"imported": imported})
}

// Motor profile lookup
func (s *Server) getMotorProfile(c *gin.Context) {
	profile, err := s.lm.Profiles().Load(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse("PROFILE_404", "Profile not found", err.Error()))
		return
	}
	c.JSON(http.StatusOK, profile)
}
