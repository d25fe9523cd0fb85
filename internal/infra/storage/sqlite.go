package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/Lumaria/Bot-Extended/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists operator state between runs: the watchlist of
// streaming markets and user key-value settings.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver, no cgo
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.WatchedMarket{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// DefaultDBPath resolves the per-user database location.
func DefaultDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "BotExtended", "data", "bot.db"), nil
}

// ======================================================================================
// Watchlist Operations
// ======================================================================================

// AddWatchedMarket records a market as streaming. Adding an already
// watched market refreshes its timestamp.
func (s *Storage) AddWatchedMarket(name string) error {
	market := domain.WatchedMarket{
		Name:    name,
		AddedAt: time.Now(),
	}
	return s.db.Save(&market).Error
}

// RemoveWatchedMarket drops a market from the watchlist. Removing an
// unknown market is a no-op.
func (s *Storage) RemoveWatchedMarket(name string) error {
	return s.db.Where("name = ?", name).Delete(&domain.WatchedMarket{}).Error
}

// ClearWatchlist drops every watched market.
func (s *Storage) ClearWatchlist() error {
	return s.db.Where("1 = 1").Delete(&domain.WatchedMarket{}).Error
}

// Watchlist returns the watched market names, sorted.
func (s *Storage) Watchlist() ([]string, error) {
	var markets []domain.WatchedMarket
	if err := s.db.Find(&markets).Error; err != nil {
		return nil, err
	}

	names := make([]string, 0, len(markets))
	for _, m := range markets {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
