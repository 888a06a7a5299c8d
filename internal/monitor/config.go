package monitor

import "time"

type ErrorHandler func(err error)

type RetentionConfig struct {
	// Enabled 控制保留期清理是否启用。
	Enabled bool `mapstructure:"enabled"`

	// Interval 为清理周期；每到一个周期做一轮过期数据删除。
	Interval time.Duration `mapstructure:"interval"`
	// KeepDays 为保留天数；早于该窗口的调用记录与问答历史被删除。
	KeepDays int `mapstructure:"keep_days"`
	// BatchRows 为单轮删除的最大行数，分批删以避免长事务。
	BatchRows int `mapstructure:"batch_rows"`
	// IdleSleep 为两批删除之间的停顿。
	IdleSleep time.Duration `mapstructure:"idle_sleep"`

	// OnError 为异步错误回调；默认丢弃。
	OnError ErrorHandler `mapstructure:"-"`
}

type Config struct {
	Retention RetentionConfig `mapstructure:"retention"`
}

func DefaultConfig() Config {
	return Config{
		Retention: RetentionConfig{
			Enabled:   true,
			Interval:  time.Hour,
			KeepDays:  30,
			BatchRows: 500,
			IdleSleep: 50 * time.Millisecond,
		},
	}
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.KeepDays <= 0 {
		c.KeepDays = 30
	}
	if c.BatchRows <= 0 {
		c.BatchRows = 500
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	return c
}
