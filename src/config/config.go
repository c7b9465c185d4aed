package config

import (
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

var Config = ColloquyConfig{
	Env:      Dev,
	Addr:     "localhost:9011",
	BaseUrl:  "http://localhost:9011",
	LogLevel: zerolog.DebugLevel,
	Postgres: PostgresConfig{
		User:     "colloquy",
		Password: "password",
		Hostname: "localhost",
		Port:     5432,
		DbName:   "colloquy",
		LogLevel: tracelog.LogLevelWarn,
		MinConn:  2,
		MaxConn:  10,
	},
	Spaces: SpacesConfig{
		Key:      "set me",
		Secret:   "set me",
		Region:   "nyc3",
		Endpoint: "http://localhost:9012/",
		Bucket:   "colloquy-attachments",
		BaseUrl:  "http://localhost:9012/colloquy-attachments/",
	},
	Views: ViewsConfig{
		EvictAfterSeconds: 60 * 60,
	},
}
