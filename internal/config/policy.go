package config

import "sync/atomic"

// ExamPolicy 保存当前生效的考试策略，配置热更新时整体替换
type ExamPolicy struct {
	current atomic.Pointer[ExamConfig]
}

func NewExamPolicy(initial ExamConfig) *ExamPolicy {
	p := &ExamPolicy{}
	p.Store(initial)
	return p
}

func (p *ExamPolicy) Load() ExamConfig {
	if c := p.current.Load(); c != nil {
		return *c
	}
	return DefaultExamConfig()
}

func (p *ExamPolicy) Store(c ExamConfig) {
	p.current.Store(&c)
}
