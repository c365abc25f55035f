package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/solver"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"120"` // 同步求解可能需要较长时间
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		JobExpiration       int    `env:"JOB_EXPIRATION" envDefault:"86400"` // 异步任务状态保留 1 天
	} `envPrefix:"REDIS_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
	Engine struct {
		CoverageMode          string   `env:"COVERAGE_MODE" envDefault:"soft"`
		CoveragePenalty       float64  `env:"COVERAGE_PENALTY" envDefault:"500"`
		SupervisorMode        string   `env:"SUPERVISOR_MODE" envDefault:"hard"`
		SupervisorPenalty     float64  `env:"SUPERVISOR_PENALTY" envDefault:"1000"`
		Relaxation            bool     `env:"RELAXATION" envDefault:"true"`
		OvertimePenalty       float64  `env:"OVERTIME_PENALTY" envDefault:"10"`
		PreferenceBonus       float64  `env:"PREFERENCE_BONUS" envDefault:"5"`
		FullTimeThreshold     float64  `env:"FULL_TIME_THRESHOLD" envDefault:"40"`
		PartTimeThreshold     float64  `env:"PART_TIME_THRESHOLD" envDefault:"30"`
		OvertimeCapHours      *float64 `env:"OVERTIME_CAP_HOURS"`
		TimeBudget            int      `env:"TIME_BUDGET" envDefault:"30"` // 秒
		RelativeGap           float64  `env:"RELATIVE_GAP" envDefault:"0"`
		Seed                  int64    `env:"SEED" envDefault:"1"`
		Workers               int      `env:"WORKERS" envDefault:"1"`
		ScenarioParallelism   int      `env:"SCENARIO_PARALLELISM" envDefault:"2"`
		DefaultAvailability   string   `env:"DEFAULT_AVAILABILITY" envDefault:"unavailable"`
		PopulationSize        int32    `env:"POPULATION_SIZE" envDefault:"20"`
		MaxGenerations        int32    `env:"MAX_GENERATIONS" envDefault:"30"`
		CrossoverRate         float64  `env:"CROSSOVER_RATE" envDefault:"0.8"`
		MutationRate          float64  `env:"MUTATION_RATE" envDefault:"0.01"`
		EliteCount            int32    `env:"ELITE_COUNT" envDefault:"2"`
	} `envPrefix:"ENGINE_"`
	Cache struct {
		Backend    string `env:"BACKEND" envDefault:"redis"` // redis | memory | none
		TTL        int    `env:"TTL" envDefault:"86400"`
		MaxEntries int    `env:"MAX_ENTRIES" envDefault:"256"`
	} `envPrefix:"CACHE_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if _, err := cfg.SchedulerConfig(); err != nil {
		return nil, err
	}
	switch cfg.DefaultAvailability() {
	case domain.AvailabilityAvailable, domain.AvailabilityUnavailable:
	default:
		return nil, fmt.Errorf("未知的默认可用性策略 %q", cfg.Engine.DefaultAvailability)
	}
	switch cfg.Cache.Backend {
	case "redis", "memory", "none":
	default:
		return nil, fmt.Errorf("未知的缓存类型 %q", cfg.Cache.Backend)
	}

	return cfg, nil
}

func mode(kind string, penalty float64) (scheduler.ConstraintMode, error) {
	switch scheduler.ModeKind(kind) {
	case scheduler.ModeHard:
		return scheduler.Hard(), nil
	case scheduler.ModeSoft:
		return scheduler.Soft(penalty), nil
	default:
		return scheduler.ConstraintMode{}, fmt.Errorf("约束模式只能是 hard 或 soft，当前为 %q", kind)
	}
}

// SchedulerConfig 由环境变量得到的默认求解配置，请求中的参数会在此基础上覆盖
func (c *Config) SchedulerConfig() (scheduler.Config, error) {
	e := c.Engine

	coverage, err := mode(e.CoverageMode, e.CoveragePenalty)
	if err != nil {
		return scheduler.Config{}, err
	}
	supervisor, err := mode(e.SupervisorMode, e.SupervisorPenalty)
	if err != nil {
		return scheduler.Config{}, err
	}

	return scheduler.Config{
		Coverage:              coverage,
		SupervisorPresence:    supervisor,
		CoverageRelaxWeight:   e.CoveragePenalty,
		SupervisorRelaxWeight: e.SupervisorPenalty,
		Relaxation:            e.Relaxation,
		OvertimePenalty:       e.OvertimePenalty,
		PreferenceBonus:       e.PreferenceBonus,
		FullTimeThreshold:     e.FullTimeThreshold,
		PartTimeThreshold:     e.PartTimeThreshold,
		OvertimeCapHours:      e.OvertimeCapHours,
		TimeBudget:            time.Duration(e.TimeBudget) * time.Second,
		RelativeGap:           e.RelativeGap,
		Seed:                  e.Seed,
		Workers:               e.Workers,
		Heuristic: solver.HeuristicParameters{
			PopulationSize: e.PopulationSize,
			MaxGenerations: e.MaxGenerations,
			CrossoverRate:  e.CrossoverRate,
			MutationRate:   e.MutationRate,
			EliteCount:     e.EliteCount,
		},
	}, nil
}

func (c *Config) DefaultAvailability() domain.AvailabilityPolicy {
	return domain.AvailabilityPolicy(c.Engine.DefaultAvailability)
}
