package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// AnalysisFile is the optional TOML file describing how items are grouped for
// flow-adjusted analysis and which counterparties are friends.
//
//	[[assets.combinations]]
//	name  = "Stablecoins"
//	items = ["USDC", "USDT"]
//
//	[assets.renames]
//	WETH = "ETH"
//
//	[[protocols.combinations]]
//	name  = "Aave USDC"
//	items = ["USDC | Aave V3 (Lending)", "USDC.e | Aave V3 (Lending)"]
//
//	[[friends]]
//	name    = "Alice"
//	address = "0xabc..."
type AnalysisFile struct {
	Assets    Grouping `toml:"assets"`
	Protocols Grouping `toml:"protocols"`
	Friends   []Friend `toml:"friends"`
}

// Grouping merges and renames the items of one analysis type.
type Grouping struct {
	Combinations []Combination    `toml:"combinations"`
	Renames      map[string]string `toml:"renames"`
}

// Combination merges several items into one named item.
type Combination struct {
	Name  string   `toml:"name"`
	Items []string `toml:"items"`
}

// Friend is a known personal counterparty.
type Friend struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
}

// LoadAnalysisFile reads path. An empty path yields an empty file.
func LoadAnalysisFile(path string) (*AnalysisFile, error) {
	file := &AnalysisFile{}
	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, file); err != nil {
			return nil, fmt.Errorf("decode analysis file %s: %w", path, err)
		}
	}
	if err := file.normalize(); err != nil {
		return nil, fmt.Errorf("analysis file %s: %w", path, err)
	}
	return file, nil
}

// ParseAnalysisFile decodes TOML from memory.
func ParseAnalysisFile(data string) (*AnalysisFile, error) {
	file := &AnalysisFile{}
	if _, err := toml.Decode(data, file); err != nil {
		return nil, err
	}
	if err := file.normalize(); err != nil {
		return nil, err
	}
	return file, nil
}

func (f *AnalysisFile) normalize() error {
	if err := f.Assets.normalize(); err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	if err := f.Protocols.normalize(); err != nil {
		return fmt.Errorf("protocols: %w", err)
	}

	for i := range f.Friends {
		f.Friends[i].Name = strings.TrimSpace(f.Friends[i].Name)
		f.Friends[i].Address = strings.ToLower(strings.TrimSpace(f.Friends[i].Address))
		if f.Friends[i].Address == "" {
			return fmt.Errorf("friend %q has no address", f.Friends[i].Name)
		}
	}
	return nil
}

func (g *Grouping) normalize() error {
	if g.Renames == nil {
		g.Renames = map[string]string{}
	}

	seen := map[string]string{}
	for i := range g.Combinations {
		c := &g.Combinations[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return errors.New("combination without name")
		}
		items := c.Items[:0]
		for _, item := range c.Items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if other, dup := seen[item]; dup {
				return fmt.Errorf("item %q is in combinations %q and %q", item, other, c.Name)
			}
			seen[item] = c.Name
			items = append(items, item)
		}
		c.Items = items
	}
	return nil
}
