// Package pricing 计算 bundle 单价，纯函数，无副作用。
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/bundleshop/internal/datamodels/bundle"
)

var (
	ErrMissingOptionSelections = errors.New("missing option selections")
	ErrUnknownOption           = errors.New("option does not belong to bundle")
)

// MissingOptionSelectionsError 列出还没有选择的选项组名称
type MissingOptionSelectionsError struct {
	Groups []string
}

func (e *MissingOptionSelectionsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingOptionSelections, strings.Join(e.Groups, ", "))
}

func (e *MissingOptionSelectionsError) Is(target error) bool {
	return target == ErrMissingOptionSelections
}

// ResolvedOption 选择解析后的结果，带上组名，方便直接做订单快照
type ResolvedOption struct {
	Group  bundle.OptionGroup
	Option bundle.Option
}

// UnitPrice 计算单价：
// fixed = base_price；configurable = base_price + 每组所选选项的 price_modifier 之和
func UnitPrice(b *bundle.Bundle, sel bundle.Selection) (decimal.Decimal, error) {
	if b.Type == bundle.TypeFixed {
		return b.BasePrice, nil
	}
	resolved, err := Resolve(b, sel)
	if err != nil {
		return decimal.Zero, err
	}
	price := b.BasePrice
	for _, r := range resolved {
		price = price.Add(r.Option.PriceModifier)
	}
	return price, nil
}

// Resolve 按 sort_order 返回每个选项组所选的选项。
// fixed bundle 返回 nil；缺少选择时返回 *MissingOptionSelectionsError。
func Resolve(b *bundle.Bundle, sel bundle.Selection) ([]ResolvedOption, error) {
	if b.Type == bundle.TypeFixed {
		return nil, nil
	}

	groups := make([]bundle.OptionGroup, len(b.OptionGroups))
	copy(groups, b.OptionGroups)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].SortOrder < groups[j].SortOrder })

	for groupID := range sel {
		if _, ok := b.Group(groupID); !ok {
			return nil, fmt.Errorf("%w: group %d", ErrUnknownOption, groupID)
		}
	}

	var missing []string
	resolved := make([]ResolvedOption, 0, len(groups))
	for _, g := range groups {
		optionID, ok := sel[g.ID]
		if !ok {
			missing = append(missing, g.Name)
			continue
		}
		opt, ok := g.Option(optionID)
		if !ok {
			return nil, fmt.Errorf("%w: option %d in group %q", ErrUnknownOption, optionID, g.Name)
		}
		resolved = append(resolved, ResolvedOption{Group: g, Option: *opt})
	}
	if len(missing) > 0 {
		return nil, &MissingOptionSelectionsError{Groups: missing}
	}
	return resolved, nil
}
