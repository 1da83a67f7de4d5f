// Package imposter 从在线玩家中抽取本轮内鬼
package imposter

import "math/rand/v2"

// Choose 无放回均匀抽取内鬼，数量为 min(max(count,1), len(ids))
// ids 不会被修改
func Choose(ids []string, count int, rng *rand.Rand) []string {
	if len(ids) == 0 {
		return []string{}
	}
	count = min(max(count, 1), len(ids))

	pool := make([]string, len(ids))
	copy(pool, ids)
	// 部分 Fisher–Yates：只洗前 count 个位置
	for i := 0; i < count; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count:count]
}
