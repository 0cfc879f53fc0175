package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像中可能没有时区数据库

	"github.com/spf13/viper"

	"factory-scheduler/internal/calendar"
)

// Config 定义应用程序的配置结构
// 使用 mapstructure 标签来映射配置文件中的字段
type Config struct {
	HTTPAddr        string           `mapstructure:"http_addr"`         // HTTP 监听地址
	LogLevel        string           `mapstructure:"log_level"`         // debug / info / warn / error
	Timezone        string           `mapstructure:"timezone"`          // 工厂所在时区，所有时刻按此解释
	MaxWorkers      int              `mapstructure:"max_workers"`       // 批量确定的最大并发数
	ScheduleLogPath string           `mapstructure:"schedule_log_path"` // 设备负荷日志文件
	OrderLogPath    string           `mapstructure:"order_log_path"`    // 订单日志文件，为空时订单只保存在内存中
	CatalogPath     string           `mapstructure:"catalog_path"`      // 主数据文件
	DefaultTenant   string           `mapstructure:"default_tenant"`    // 请求未携带 X-Tenant-ID 时使用
	Calendar        CalendarConfig   `mapstructure:"calendar"`
	MasterData      MasterDataConfig `mapstructure:"masterdata"`
}

// CalendarConfig 是全局的工作日历例外，日期格式为 YYYY-MM-DD
type CalendarConfig struct {
	Holidays      []string `mapstructure:"holidays"`
	Workdays      []string `mapstructure:"workdays"`       // 周末加班日
	LookaheadDays int      `mapstructure:"lookahead_days"` // 从主数据读取日历例外的天数
}

// MasterDataConfig 远程主数据服务，Endpoint 为空时使用本地主数据文件
type MasterDataConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// setDefaults 为每个键设置默认值，AutomaticEnv 只对已知的键生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "Asia/Tokyo")
	v.SetDefault("max_workers", 4)
	v.SetDefault("schedule_log_path", "schedule.log")
	v.SetDefault("order_log_path", "orders.log")
	v.SetDefault("catalog_path", "catalog.yaml")
	v.SetDefault("default_tenant", "default")
	v.SetDefault("calendar.lookahead_days", 90)
	v.SetDefault("calendar.holidays", []string{})
	v.SetDefault("calendar.workdays", []string{})
	v.SetDefault("masterdata.endpoint", "")
	v.SetDefault("masterdata.timeout_ms", 2000)
}

// LoadConfig 加载配置
// path 为空时在当前目录查找 config.yaml，找不到则只使用默认值和环境变量 (前缀 SCHEDULER_)
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // 配置文件名称 (不带扩展名)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("SCHEDULER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if cfg.MaxWorkers < 1 {
		return nil, fmt.Errorf("max_workers 必须大于 0: %d", cfg.MaxWorkers)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location 返回工厂时区
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// CalendarOverrides 把配置中的日期解析为日历例外
func (c *Config) CalendarOverrides(loc *time.Location) (calendar.Config, error) {
	holidays, err := parseDates(c.Calendar.Holidays, loc)
	if err != nil {
		return calendar.Config{}, err
	}
	workdays, err := parseDates(c.Calendar.Workdays, loc)
	if err != nil {
		return calendar.Config{}, err
	}
	return calendar.NewConfig(holidays, workdays), nil
}

func parseDates(values []string, loc *time.Location) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(values))
	for _, s := range values {
		d, err := time.ParseInLocation(time.DateOnly, s, loc)
		if err != nil {
			return nil, fmt.Errorf("无效的日期 %q: %w", s, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// Lookahead 返回读取日历例外的时间跨度
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.Calendar.LookaheadDays) * 24 * time.Hour
}

// MasterDataTimeout 返回远程主数据请求的超时时间
func (c *Config) MasterDataTimeout() time.Duration {
	return time.Duration(c.MasterData.TimeoutMs) * time.Millisecond
}

// SlogLevel 将 log_level 转换为 slog.Level，无法识别时使用 Info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
