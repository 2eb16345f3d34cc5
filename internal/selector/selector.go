// Package selector 实现从报名者中随机抽取值班人员的算法。
//
// 抽取使用部分 Fisher-Yates 洗牌：只洗前 k 个位置，得到的 k 元子集在所有
// C(n, k) 个子集中等概率出现。
package selector

import (
	"math/rand/v2"
	"sync"
)

// Pick 从 candidates 中等概率地选出 min(required, len(candidates)) 个元素，
// 返回选中的元素以及选中的数量。candidates 不会被修改。
func Pick[T any](r *rand.Rand, candidates []T, required int) ([]T, int) {
	k := min(required, len(candidates))
	if k <= 0 {
		return []T{}, 0
	}

	// 复制数组，避免修改原数组
	pool := append([]T{}, candidates...)

	for i := 0; i < k; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:k:k], k
}

// Selector 包装了一个并发安全的随机源
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New 使用给定种子创建 Selector，seed 为 0 时使用随机种子
func New(seed uint64) *Selector {
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &Selector{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func Select[T any](s *Selector, candidates []T, required int) ([]T, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Pick(s.rng, candidates, required)
}
