package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type DbType string

const (
	DbTypePostgreSQL DbType = "POSTGRESQL"
	DbTypeVertica    DbType = "VERTICA"
	DbTypeSnowflake  DbType = "SNOWFLAKE"
)

func (t DbType) Valid() bool {
	switch t {
	case DbTypePostgreSQL, DbTypeVertica, DbTypeSnowflake:
		return true
	}
	return false
}

type BaseConfig struct {
	Query                 string `yaml:"query"`
	MeasurementIterations int    `yaml:"measurement_iterations"`
}

type Database struct {
	Name           string `yaml:"name"`
	DbType         DbType `yaml:"db_type"`
	Host           string `yaml:"host"`
	DbName         string `yaml:"db_name"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	OdbcDriverPath string `yaml:"odbc_driver_path"`
	Port           string `yaml:"port"`
	// Snowflake only
	Account   string `yaml:"account"`
	Warehouse string `yaml:"warehouse"`

	BottomLimit *int `yaml:"bottom_limit"`
	TopLimit    *int `yaml:"top_limit"`

	// ConnectionTypes restricts or extends the driver families run against
	// this database; empty means the default families.
	ConnectionTypes []string `yaml:"connection_types"`
}

type Location struct {
	Name      string     `yaml:"name"`
	Databases []Database `yaml:"databases"`
}

type Config struct {
	Config    BaseConfig `yaml:"config"`
	Locations []Location `yaml:"locations"`
}

// LoadConfig reads the YAML configuration at path, replaces config.query (a
// path to a SQL file) with the file contents and resolves every password
// through lookup. Any failure here is fatal for the whole benchmark.
func LoadConfig(path string, lookup func(string) (string, bool)) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %v: %w", path, err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %v: %w", path, err)
	}
	if config.Config.MeasurementIterations < 1 {
		return Config{}, fmt.Errorf("measurement_iterations must be positive, got %v", config.Config.MeasurementIterations)
	}
	if config.Config.Query == "" {
		return Config{}, fmt.Errorf("config.query is not set")
	}
	query, err := os.ReadFile(config.Config.Query)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read query file %v: %w", config.Config.Query, err)
	}
	config.Config.Query = strings.TrimRight(string(query), " \t\r\n;")

	for i := range config.Locations {
		location := &config.Locations[i]
		if location.Name == "" {
			return Config{}, fmt.Errorf("location #%v has no name", i)
		}
		for j := range location.Databases {
			database := &location.Databases[j]
			if database.Name == "" {
				return Config{}, fmt.Errorf("database #%v in location %v has no name", j, location.Name)
			}
			if !database.DbType.Valid() {
				return Config{}, fmt.Errorf("database %v/%v has unknown db_type %q", location.Name, database.Name, database.DbType)
			}
			password, ok := lookup(database.Password)
			if !ok {
				return Config{}, fmt.Errorf("password variable %q for database %v/%v is not set", database.Password, location.Name, database.Name)
			}
			database.Password = password
		}
	}
	return config, nil
}
