// Package catalog holds the drink menu and its prices.
package catalog

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Drink is a single menu entry. Price is in whole rubles.
type Drink struct {
	Name  string `yaml:"name"`
	Price int    `yaml:"price"`
}

// MaxSugar is the largest accepted spoon count.
const MaxSugar = 3

// SugarChoices returns the spoon counts offered for every drink, 0 through MaxSugar.
func SugarChoices() []int {
	out := make([]int, 0, MaxSugar+1)
	for n := 0; n <= MaxSugar; n++ {
		out = append(out, n)
	}
	return out
}

// Catalog is an ordered, immutable drink menu.
type Catalog struct {
	drinks []Drink
	prices map[string]int
}

// Default returns the shop's standard menu.
func Default() *Catalog {
	c, _ := New([]Drink{
		{Name: "Эспрессо", Price: 30},
		{Name: "Двойной эспрессо", Price: 40},
		{Name: "Американо", Price: 35},
		{Name: "Латте", Price: 50},
		{Name: "Двойной латте", Price: 70},
		{Name: "Капучино", Price: 60},
		{Name: "Двойной капучино", Price: 80},
		{Name: "Флэт Уайт", Price: 70},
	})
	return c
}

// New validates drinks and builds a Catalog preserving their order.
func New(drinks []Drink) (*Catalog, error) {
	if len(drinks) == 0 {
		return nil, errors.New("catalog: no drinks configured")
	}
	c := &Catalog{
		drinks: make([]Drink, 0, len(drinks)),
		prices: make(map[string]int, len(drinks)),
	}
	for _, d := range drinks {
		d.Name = strings.TrimSpace(d.Name)
		switch {
		case d.Name == "":
			return nil, errors.New("catalog: drink with empty name")
		case d.Price < 0:
			return nil, errors.Newf("catalog: negative price for %q", d.Name)
		}
		if _, dup := c.prices[d.Name]; dup {
			return nil, errors.Newf("catalog: duplicate drink %q", d.Name)
		}
		// Telegram limits callback data to 64 bytes including the "\fdrink|" prefix.
		if len(d.Name) > 56 {
			return nil, errors.Newf("catalog: drink name %q is too long", d.Name)
		}
		c.prices[d.Name] = d.Price
		c.drinks = append(c.drinks, d)
	}
	return c, nil
}

// Drinks returns the menu in display order.
func (c *Catalog) Drinks() []Drink {
	return append([]Drink(nil), c.drinks...)
}

// Price returns the configured price; unknown drinks cost 0.
func (c *Catalog) Price(name string) int {
	return c.prices[name]
}

// Has reports whether name is on the menu.
func (c *Catalog) Has(name string) bool {
	_, ok := c.prices[name]
	return ok
}

// Label renders a menu button caption.
func (d Drink) Label() string {
	return fmt.Sprintf("%s - %d₽", d.Name, d.Price)
}
