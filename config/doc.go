// Package config provides configuration loading and validation for pixelflow
// binaries.
//
// It uses Viper to read a YAML file and godotenv to read .env files, then
// binds every environment variable so that LOGGING_LEVEL or
// EXECUTION_CACHE_SIZE override the matching nested keys.
//
// # Usage
//
//	var cfg AppConfig
//	if err := config.Load("pixelflow", &cfg, config.WithConfigFile(path)); err != nil {
//	    return err
//	}
package config
