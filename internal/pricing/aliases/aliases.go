// Package aliases holds the static table of regional and trade names for
// commodities and markets. Groups are symmetric: every member is an alias of
// every other member.
package aliases

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mandi-prices/internal/pricing/fuzzy"
)

//go:embed aliases.yaml
var defaultTable []byte

type file struct {
	Commodities [][]string `yaml:"commodities"`
	Markets     [][]string `yaml:"markets"`
}

// Table is immutable after construction and safe for concurrent use.
type Table struct {
	commodities groups
	markets     groups
}

type groups struct {
	list  [][]string
	index map[string]int // normalized name -> position in list
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded alias table is invalid: %v", err))
	}
	return t
}

// Load reads a table from path, or returns the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias table %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse alias table: %w", err)
	}

	commodities, err := buildGroups("commodities", f.Commodities)
	if err != nil {
		return nil, err
	}
	markets, err := buildGroups("markets", f.Markets)
	if err != nil {
		return nil, err
	}
	return &Table{commodities: commodities, markets: markets}, nil
}

func buildGroups(section string, raw [][]string) (groups, error) {
	g := groups{index: make(map[string]int)}
	for _, members := range raw {
		var clean []string
		for _, m := range members {
			if m = strings.TrimSpace(m); m != "" {
				clean = append(clean, m)
			}
		}
		if len(clean) < 2 {
			continue
		}

		pos := len(g.list)
		for _, m := range clean {
			key := fuzzy.Normalize(m)
			if prev, dup := g.index[key]; dup && prev != pos {
				return groups{}, fmt.Errorf("%s: %q appears in more than one group", section, m)
			}
			g.index[key] = pos
		}
		g.list = append(g.list, clean)
	}
	return g, nil
}

func (g groups) aliasesOf(name string) []string {
	key := fuzzy.Normalize(name)
	pos, ok := g.index[key]
	if !ok {
		return nil
	}
	var out []string
	for _, m := range g.list[pos] {
		if fuzzy.Normalize(m) != key {
			out = append(out, m)
		}
	}
	return out
}

// CommodityAliases returns the other names of a commodity in table order.
func (t *Table) CommodityAliases(name string) []string {
	return t.commodities.aliasesOf(name)
}

// MarketAliases returns the other names of a market in table order.
func (t *Table) MarketAliases(name string) []string {
	return t.markets.aliasesOf(name)
}

func (t *Table) HasCommodity(name string) bool {
	_, ok := t.commodities.index[fuzzy.Normalize(name)]
	return ok
}
