package bundle

import (
	"fmt"
	"sort"
	"strings"
)

// Selection 买家在 configurable bundle 上的选择：option group ID -> option ID。
// 以组为 key，同组重新选择会覆盖旧值。
type Selection map[int64]int64

// Choose 选择某组的选项，返回自身便于链式调用
func (s Selection) Choose(groupID, optionID int64) Selection {
	s[groupID] = optionID
	return s
}

// Signature 按组 ID 排序后的稳定签名，例如 "1:10,2:21"
func (s Selection) Signature() string {
	if len(s) == 0 {
		return ""
	}
	groups := make([]int64, 0, len(s))
	for g := range s {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("%d:%d", g, s[g]))
	}
	return strings.Join(parts, ",")
}
