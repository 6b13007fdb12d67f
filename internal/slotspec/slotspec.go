// Package slotspec 将创建表单里的紧凑容量描述符解析为类型化的槽位表。
//
// 描述符是一串逗号分隔的非负整数，按固定顺序对应角色：Tank, Healer, DPS。
// 例如 "1,1,3" 表示 1 Tank / 1 Healer / 3 DPS。
// 解析永不失败：表单内容是自由文本，坏的输入退化为更少（或零个）槽位，
// 下游逻辑不需要区分“坏表单”和“没有开放角色的活动”。
package slotspec

import (
	"strconv"
	"strings"

	"github.com/zenkaedev/Zenkae-sub000/internal/models"
)

// RoleLabels 是固定的角色顺序，描述符中的整数按此顺序解释。
var RoleLabels = []string{"Tank", "Healer", "DPS"}

// Parse turns a capacity descriptor into a slot table. Only roles with a
// positive capacity are kept, each starting with an empty member list.
// Malformed or missing integers count as 0 (the role is omitted, not
// rejected); values beyond the fixed role set are ignored.
func Parse(spec string) []models.Slot {
	parts := strings.Split(spec, ",")

	slots := make([]models.Slot, 0, len(RoleLabels))
	for i, role := range RoleLabels {
		capacity := 0
		if i < len(parts) {
			if n, err := strconv.Atoi(strings.TrimSpace(parts[i])); err == nil && n > 0 {
				capacity = n
			}
		}
		if capacity == 0 {
			continue
		}
		slots = append(slots, models.Slot{
			Role:     role,
			Capacity: capacity,
			Members:  []string{},
		})
	}
	return slots
}
