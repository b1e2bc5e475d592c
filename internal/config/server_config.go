package config

import (
	"time"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/util"
)

// Balance holds the endpoint and protocol settings of one balance.
type Balance struct {
	Host     string
	Port     int
	APIPath  string
	Password string

	HTTPTimeout         time.Duration
	PollInterval        time.Duration
	NotificationTimeout time.Duration
	DoseTimeout         time.Duration
	SettleDelay         time.Duration
	RetryDelay          time.Duration
}

// Dosing holds the defaults applied to dose requests that do not
// specify their own values.
type Dosing struct {
	MaxAttempts              int
	MinDosedThresholdPercent float64
	LowerTolerancePercent    float64
	UpperTolerancePercent    float64
}

// Redis holds the connection settings of the dosing-result store.
type Redis struct {
	Enabled bool
	Addr    string
	DB      int
}

// Echo holds the HTTP control server settings.
type Echo struct {
	ListenAddress string
}

// Server is the root configuration of the process.
type Server struct {
	Balance Balance
	Dosing  Dosing
	Redis   Redis
	Echo    Echo
}

// DefaultServiceConfigFromEnv assembles the configuration from the
// environment, with defaults suitable for a lab-network deployment.
// The balance password is a secret and has no meaningful default.
func DefaultServiceConfigFromEnv() Server {
	return Server{
		Balance: Balance{
			Host:     util.GetEnv("BALANCE_HOST", "192.168.254.83"),
			Port:     util.GetEnvAsInt("BALANCE_PORT", 8002),
			APIPath:  util.GetEnv("BALANCE_API_PATH", "MT/Laboratory/Balance/XprXsr/V03/MT"),
			Password: util.GetEnv("BALANCE_PASSWORD", ""),

			HTTPTimeout:         util.GetEnvAsDuration("BALANCE_HTTP_TIMEOUT", 90*time.Second),
			PollInterval:        util.GetEnvAsDuration("BALANCE_POLL_INTERVAL", time.Second),
			NotificationTimeout: util.GetEnvAsDuration("BALANCE_NOTIFICATION_TIMEOUT", 500*time.Millisecond),
			DoseTimeout:         util.GetEnvAsDuration("BALANCE_DOSE_TIMEOUT", 200*time.Second),
			SettleDelay:         util.GetEnvAsDuration("BALANCE_SETTLE_DELAY", time.Second),
			RetryDelay:          util.GetEnvAsDuration("BALANCE_RETRY_DELAY", 2*time.Second),
		},
		Dosing: Dosing{
			MaxAttempts:              util.GetEnvAsInt("DOSING_MAX_ATTEMPTS", 3),
			MinDosedThresholdPercent: util.GetEnvAsFloat64("DOSING_MIN_THRESHOLD_PERCENT", 90),
			LowerTolerancePercent:    util.GetEnvAsFloat64("DOSING_LOWER_TOLERANCE_PERCENT", 2),
			UpperTolerancePercent:    util.GetEnvAsFloat64("DOSING_UPPER_TOLERANCE_PERCENT", 2),
		},
		Redis: Redis{
			Enabled: util.GetEnvAsBool("REDIS_ENABLED", false),
			Addr:    util.GetEnv("REDIS_ADDR", "127.0.0.1:6379"),
			DB:      util.GetEnvAsInt("REDIS_DB", 0),
		},
		Echo: Echo{
			ListenAddress: util.GetEnv("SERVER_LISTEN_ADDRESS", ":8080"),
		},
	}
}
