package interfaces

import (
	"context"

	"github.com/KevinKickass/OpenShutterCore/internal/bridge"
	"github.com/KevinKickass/OpenShutterCore/internal/config"
	"github.com/KevinKickass/OpenShutterCore/internal/cover"
	"github.com/KevinKickass/OpenShutterCore/internal/profiles"
	"github.com/KevinKickass/OpenShutterCore/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State          string `json:"state"`
	StickConnected bool   `json:"stick_connected"`
	StickVersion   string `json:"stick_version,omitempty"`
	StickMode      string `json:"stick_mode,omitempty"`
	CoverCount     int    `json:"cover_count"`
}

type LifecycleManager interface {
	Config() *config.Config
	Storage() *storage.PostgresClient
	Session() *bridge.Session
	CoverManager() *cover.Manager
	Calibrator() *cover.Calibrator
	Profiles() *profiles.ProfileLoader
	ImportValidator() *profiles.Validator
	GetCurrentStatus() SystemStatus
	PairDevice(ctx context.Context, name, profileName string) (cover.Info, bool, error)
	RemoveDevice(ctx context.Context, deviceID string) error
	Shutdown(ctx context.Context) error
}
