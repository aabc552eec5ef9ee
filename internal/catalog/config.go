package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the cafe identity + menu file, hot-reloadable through the
// admin API. Missing file or fields fall back to the built-in defaults so a
// fresh deployment comes up with a working demo menu.
type FileConfig struct {
	Cafe struct {
		Name        string `yaml:"name"`
		Phone       string `yaml:"phone"`
		AdminChatID string `yaml:"admin_chat_id"`
		WorkStart   *int   `yaml:"work_start"`
		WorkEnd     *int   `yaml:"work_end"`
		Menu        []Item `yaml:"menu"`
	} `yaml:"cafe"`
}

func defaultFileConfig() *FileConfig {
	cfg := &FileConfig{}
	cfg.Cafe.Name = "Cafe Cozy"
	cfg.Cafe.Phone = "+7 989 273-67-56"
	ws, we := 9, 21
	cfg.Cafe.WorkStart = &ws
	cfg.Cafe.WorkEnd = &we
	cfg.Cafe.Menu = []Item{
		{Name: "Cappuccino", Price: 250},
		{Name: "Latte", Price: 270},
		{Name: "Tea", Price: 180},
		{Name: "Espresso", Price: 200},
	}
	return cfg
}

// LoadFile reads path and merges it over the defaults. An unreadable file is
// not an error: the defaults are returned so the bot still starts.
func LoadFile(path string) *FileConfig {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var loaded FileConfig
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return cfg
	}
	if loaded.Cafe.Name != "" {
		cfg.Cafe.Name = loaded.Cafe.Name
	}
	if loaded.Cafe.Phone != "" {
		cfg.Cafe.Phone = loaded.Cafe.Phone
	}
	if loaded.Cafe.AdminChatID != "" {
		cfg.Cafe.AdminChatID = loaded.Cafe.AdminChatID
	}
	if validHour(loaded.Cafe.WorkStart) && validHour(loaded.Cafe.WorkEnd) && *loaded.Cafe.WorkStart != *loaded.Cafe.WorkEnd {
		cfg.Cafe.WorkStart = loaded.Cafe.WorkStart
		cfg.Cafe.WorkEnd = loaded.Cafe.WorkEnd
	}
	if len(loaded.Cafe.Menu) > 0 {
		cfg.Cafe.Menu = loaded.Cafe.Menu
	}
	return cfg
}

func validHour(h *int) bool {
	return h != nil && *h >= 0 && *h <= 23
}

func (c *FileConfig) String() string {
	return fmt.Sprintf("%s (%d items, %02d:00-%02d:00)", c.Cafe.Name, len(c.Cafe.Menu), *c.Cafe.WorkStart, *c.Cafe.WorkEnd)
}
