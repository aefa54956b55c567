package config

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo collects process settings from .env
type EnvInfo struct {
	// binary names
	ChatClient string
	PortalStub string

	// yaml paths
	ChatClientYAMLPath string
	PortalStubYAMLPath string

	// log paths
	ChatClientLogPath string
	PortalStubLogPath string

	// bearer token for the chat client
	AuthToken string
}

// EnvConfig collects process settings
var (
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		}

		if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		envConfig = EnvInfo{
			ChatClient: os.Getenv("CHAT_CLIENT"),
			PortalStub: os.Getenv("PORTAL_STUB"),

			ChatClientYAMLPath: os.Getenv("CHAT_CLIENT_YAML"),
			PortalStubYAMLPath: os.Getenv("PORTAL_STUB_YAML"),

			ChatClientLogPath: os.Getenv("CHAT_CLIENT_LOG"),
			PortalStubLogPath: os.Getenv("PORTAL_STUB_LOG"),

			AuthToken: os.Getenv("CHAT_AUTH_TOKEN"),
		}
	})

	return envConfig
}

// LoadConfig reads the named YAML file and unmarshals it into T,
// expanding ${} placeholders from the environment first.
func LoadConfig[T any](serviceName string, configPath string) T {
	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error loading config file: %v", err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		log.Fatalf("Error reading raw config file: %v", err)
	}

	expandedConfig := os.ExpandEnv(string(rawConfig))

	if err := v.ReadConfig(bytes.NewBuffer([]byte(expandedConfig))); err != nil {
		log.Fatalf("Error reading expanded config: %v", err)
	}

	var cfg T
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("Error unmarshaling config: %v", err)
	}
	return cfg
}

// GetPath walks up at most maxCount directories looking for fileName.
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
