package config

import (
	"errors"

	"github.com/spf13/viper"
)

type Config struct {
	Server  Server
	DB      DB
	Session Session
	Chat    Chat
	Logger  Logger
}

type Server struct {
	Port         string
	ReadTimeout  int64 // seconds
	WriteTimeout int64 // seconds
}

type DB struct {
	DSN string
}

type Session struct {
	SecretKey string
	MaxAge    int // seconds
}

type Chat struct {
	MaxMessageLength int
	PreviewLength    int
	DefaultPageLimit int
}

type Logger struct {
	Level string
	JSON  bool
}

func Load(filename string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.ReadTimeout", 15)
	v.SetDefault("Server.WriteTimeout", 15)
	v.SetDefault("DB.DSN", "chatcore.db")
	v.SetDefault("Session.MaxAge", 7*24*3600)
	v.SetDefault("Chat.MaxMessageLength", 2000)
	v.SetDefault("Chat.PreviewLength", 100)
	v.SetDefault("Chat.DefaultPageLimit", 20)
	v.SetDefault("Logger.Level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func Parse(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.Session.SecretKey == "" {
		return nil, errors.New("Session.SecretKey is required")
	}
	return &c, nil
}
