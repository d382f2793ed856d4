package util

import (
	"sort"
	"strconv"
	"strings"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// JoinUintIDs 去重排序后以逗号拼接
func JoinUintIDs(ids []uint) string {
	if len(ids) == 0 {
		return ""
	}
	uniq := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := uniq[id]; ok {
			continue
		}
		uniq[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	parts := make([]string, len(out))
	for i, id := range out {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// SplitUintIDs JoinUintIDs 的逆操作，忽略非法片段
func SplitUintIDs(s string) []uint {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []uint
	for _, p := range strings.Split(s, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, uint(id))
	}
	return out
}
