package app

import (
	"fmt"
	"strings"

	"github.com/m3rciful/coffeebot/coffee/catalog"
	coreconfig "github.com/m3rciful/coffeebot/core/config"
	coredatabase "github.com/m3rciful/coffeebot/core/database"
)

// ShopConfig holds the coffee shop settings.
type ShopConfig struct {
	// AdminChatID receives new orders with the approval button.
	AdminChatID    int64  `yaml:"admin_chat_id" envconfig:"SHOP_ADMIN_CHAT_ID"`
	PaymentAccount string `yaml:"payment_account" envconfig:"SHOP_PAYMENT_ACCOUNT"`
	PickupLocation string `yaml:"pickup_location" envconfig:"SHOP_PICKUP_LOCATION"`
	// Catalog overrides the default menu when non-empty.
	Catalog []catalog.Drink `yaml:"catalog" ignored:"true"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Shop     ShopConfig          `yaml:"shop"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if c.Shop.AdminChatID == 0 {
		c.Shop.AdminChatID = c.Telegram.AdminID
	}
	c.Shop.PaymentAccount = strings.TrimSpace(c.Shop.PaymentAccount)
	if c.Shop.PaymentAccount == "" {
		return fmt.Errorf("shop.payment_account is required")
	}
	c.Shop.PickupLocation = strings.TrimSpace(c.Shop.PickupLocation)
	if c.Shop.PickupLocation == "" {
		return fmt.Errorf("shop.pickup_location is required")
	}
	if len(c.Shop.Catalog) > 0 {
		if _, err := catalog.New(c.Shop.Catalog); err != nil {
			return err
		}
	}
	return nil
}

// Menu returns the configured catalog, or the default one.
func (c *Config) Menu() *catalog.Catalog {
	if len(c.Shop.Catalog) == 0 {
		return catalog.Default()
	}
	m, err := catalog.New(c.Shop.Catalog)
	if err != nil {
		return catalog.Default()
	}
	return m
}
