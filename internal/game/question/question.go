package question

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// Question 一道题目，措辞为"房间里谁最……"
type Question struct {
	ID       string `yaml:"id"`
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
}

// Bank 只读题库，可被多个房间并发使用
type Bank struct {
	questions []Question
}

// NewBank 创建题库，至少需要两道 ID 互不相同的题目
func NewBank(questions []Question) (*Bank, error) {
	if len(questions) < 2 {
		return nil, errors.New("question bank needs at least 2 questions")
	}

	b := &Bank{questions: make([]Question, len(questions))}
	copy(b.questions, questions)
	seen := make(map[string]struct{}, len(questions))
	for i, q := range b.questions {
		if q.ID == "" || q.Text == "" {
			return nil, fmt.Errorf("question %d: id and text are required", i)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return b, nil
}

// LoadBank 从 YAML 文件加载题库（顶层为题目列表）
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var questions []Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}
	return NewBank(questions)
}

// Len 题目数量
func (b *Bank) Len() int {
	return len(b.questions)
}

// DrawPair 抽取两道不同的题目：主问题和内鬼问题
// 优先从未使用的题目中抽取，剩余不足两道时从全部题目中抽取
func (b *Bank) DrawPair(used []string, rng *rand.Rand) (main, imposter Question) {
	usedSet := make(map[string]struct{}, len(used))
	for _, id := range used {
		usedSet[id] = struct{}{}
	}

	eligible := make([]Question, 0, len(b.questions))
	for _, q := range b.questions {
		if _, ok := usedSet[q.ID]; !ok {
			eligible = append(eligible, q)
		}
	}
	if len(eligible) < 2 {
		eligible = b.questions
	}

	n := len(eligible)
	i := rng.IntN(n)
	j := rng.IntN(n - 1)
	if j >= i {
		j++
	}
	return eligible[i], eligible[j]
}
