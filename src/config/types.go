package config

import (
	"fmt"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta             = "beta"
	Dev              = "dev"
)

type ColloquyConfig struct {
	Env      Environment
	Addr     string
	BaseUrl  string
	LogLevel zerolog.Level
	Postgres PostgresConfig
	Spaces   SpacesConfig
	Views    ViewsConfig
}

type PostgresConfig struct {
	User     string
	Password string
	Hostname string
	Port     int
	DbName   string
	LogLevel tracelog.LogLevel
	MinConn  int32
	MaxConn  int32
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

// S3-compatible storage for entry attachments.
type SpacesConfig struct {
	Key      string
	Secret   string
	Region   string
	Endpoint string
	Bucket   string
	BaseUrl  string
}

type ViewsConfig struct {
	// Cached views untouched for longer than this get evicted by the
	// background sweeper. Zero disables eviction.
	EvictAfterSeconds int
}
