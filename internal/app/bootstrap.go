package app

import (
	"errors"

	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/profile"
)

// ErrNoUser is returned when neither --user nor default_user names a profile.
var ErrNoUser = errors.New("no user selected: pass --user or set default_user in config.toml")

// Load resolves the effective config and the active user. An empty
// configPath means the global config file.
func Load(userFlag, configPath string) (*config.Config, string, error) {
	if configPath == "" {
		configPath = profile.ConfigPath()
	}
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	userID := profile.Resolve(userFlag, cfg.DefaultUser)
	if userID == "" {
		return nil, "", ErrNoUser
	}
	if err := profile.ValidateUserID(userID); err != nil {
		return nil, "", err
	}
	return cfg, userID, nil
}
