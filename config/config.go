package config

import "time"

type Config struct {
	Web  Web
	DB   DB
	Auth Auth
	Cors Cors
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:storefront"`
	DisableTLS bool   `conf:"default:true"`
}

type Auth struct {
	// Secret signs the bearer tokens handed out on login.
	Secret       string        `conf:"default:change-me,mask"`
	TokenTimeout time.Duration `conf:"default:24h"`

	// Login throttling knobs, per client address.
	LoginBurst  int     `conf:"default:5"`
	LoginExpiry int     `conf:"default:30"`
	LoginRPS    float64 `conf:"default:0.2"`
}

type Cors struct {
	Origin string `conf:"default:"`
}
