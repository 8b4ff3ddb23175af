package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		Host            string
		ShutdownTimeout time.Duration
		AllowedOrigins  []string
	}

	UpstreamConfig struct {
		BaseURL   string
		Timeout   time.Duration
		RateLimit float64 // requests per second, 0 disables pacing
		Burst     int
	}

	PlanningConfig struct {
		Location     *time.Location
		WeekStart    time.Weekday
		ICSProductID string
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		RollbarToken string

		Server   ServerConfig
		Upstream UpstreamConfig
		Planning PlanningConfig
	}
)

// NewConfig reads the configuration of the current environment (`ENV`: DEV (default), TEST, QA, PROD).
// Values come from the environment, prefixed with the env name (e.g. `PROD_UPSTREAM_BASEURL`),
// and from `config/.env.<env>` when that file exists.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Maraakiz")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.allowedOrigins", []string{"http://localhost:5173"})
	conf.SetDefault("upstream.baseURL", "http://127.0.0.1:8001/api")
	conf.SetDefault("upstream.timeout", 15*time.Second)
	conf.SetDefault("upstream.rateLimit", 20.0)
	conf.SetDefault("upstream.burst", 10)
	conf.SetDefault("planning.timezone", "Europe/Paris")
	conf.SetDefault("planning.weekStart", "monday")
	conf.SetDefault("planning.icsProductID", "-//Maraakiz//Planning//FR")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(ProjectRoot(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	loc, err := time.LoadLocation(conf.GetString("planning.timezone"))
	if err != nil {
		log.Printf("config: unknown planning.timezone %q, falling back to UTC", conf.GetString("planning.timezone"))
		loc = time.UTC
	}

	return &Config{
		Env:          env,
		Build:        conf.GetString("build"),
		AppName:      conf.GetString("appName"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         conf.GetString("server.address"),
			Host:            conf.GetString("server.host"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			AllowedOrigins:  conf.GetStringSlice("server.allowedOrigins"),
		},
		Upstream: UpstreamConfig{
			BaseURL:   strings.TrimRight(conf.GetString("upstream.baseURL"), "/"),
			Timeout:   conf.GetDuration("upstream.timeout"),
			RateLimit: conf.GetFloat64("upstream.rateLimit"),
			Burst:     conf.GetInt("upstream.burst"),
		},
		Planning: PlanningConfig{
			Location:     loc,
			WeekStart:    ParseWeekday(conf.GetString("planning.weekStart"), time.Monday),
			ICSProductID: conf.GetString("planning.icsProductID"),
		},
	}
}

// ParseWeekday parses an english weekday name, returning `def` if it is not one.
func ParseWeekday(s string, def time.Weekday) time.Weekday {
	s = CleanString(s, true /* lower */)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return d
		}
	}
	return def
}

// ProjectRoot walks up from the working directory until it finds the directory holding go.mod.
// go-test changes the working directory to the test package being run, so config files
// cannot be resolved relative to it.
func ProjectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
