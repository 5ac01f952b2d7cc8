package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	queryPath := filepath.Join(dir, "query.sql")
	require.Nil(t, os.WriteFile(queryPath, []byte("select a, b, c from lineitem;\n"), 0o644))
	configPath := filepath.Join(dir, "config.yaml")
	require.Nil(t, os.WriteFile(configPath, []byte(fmt.Sprintf(body, queryPath)), 0o644))
	return configPath
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

const testConfigYaml = `
config:
  query: %v
  measurement_iterations: 3
locations:
  - name: us-east
    databases:
      - name: pg1
        db_type: POSTGRESQL
        host: localhost
        port: "5432"
        db_name: tiger
        user: tiger
        password: PG1_PASSWORD
        odbc_driver_path: /usr/lib/psqlodbcw.so
        bottom_limit: 10000
        top_limit: 1000000
      - name: sf1
        db_type: SNOWFLAKE
        host: ignored
        db_name: bench
        user: bench
        password: SF1_PASSWORD
        odbc_driver_path: /usr/lib/snowflake/libSnowflake.so
        account: org-account
        warehouse: compute_wh
        connection_types: [go_arrow]
`

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, testConfigYaml)
	config, err := LoadConfig(path, lookupFrom(map[string]string{
		"PG1_PASSWORD": "pg-secret",
		"SF1_PASSWORD": "sf-secret",
	}))
	require.Nil(t, err)

	require.Equal(t, "select a, b, c from lineitem", config.Config.Query)
	require.Equal(t, 3, config.Config.MeasurementIterations)
	require.Len(t, config.Locations, 1)
	databases := config.Locations[0].Databases
	require.Len(t, databases, 2)

	pg := databases[0]
	require.Equal(t, DbTypePostgreSQL, pg.DbType)
	require.Equal(t, "pg-secret", pg.Password)
	require.Equal(t, "5432", pg.Port)
	require.Equal(t, 10_000, *pg.BottomLimit)
	require.Equal(t, 1_000_000, *pg.TopLimit)
	require.Empty(t, pg.ConnectionTypes)

	sf := databases[1]
	require.Equal(t, DbTypeSnowflake, sf.DbType)
	require.Equal(t, "sf-secret", sf.Password)
	require.Equal(t, "org-account", sf.Account)
	require.Equal(t, "compute_wh", sf.Warehouse)
	require.Nil(t, sf.BottomLimit)
	require.Nil(t, sf.TopLimit)
	require.Equal(t, []string{"go_arrow"}, sf.ConnectionTypes)
}

func TestLoadConfigUnsetPassword(t *testing.T) {
	path := writeConfig(t, testConfigYaml)
	_, err := LoadConfig(path, lookupFrom(map[string]string{"PG1_PASSWORD": "pg-secret"}))
	require.ErrorContains(t, err, "SF1_PASSWORD")
}

func TestLoadConfigUnknownDbType(t *testing.T) {
	path := writeConfig(t, `
config:
  query: %v
  measurement_iterations: 1
locations:
  - name: us-east
    databases:
      - name: my1
        db_type: MYSQL
        password: MY1_PASSWORD
`)
	_, err := LoadConfig(path, lookupFrom(map[string]string{"MY1_PASSWORD": "x"}))
	require.ErrorContains(t, err, "MYSQL")
}

func TestLoadConfigInvalidIterations(t *testing.T) {
	path := writeConfig(t, `
config:
  query: %v
  measurement_iterations: 0
locations: []
`)
	_, err := LoadConfig(path, lookupFrom(nil))
	require.ErrorContains(t, err, "measurement_iterations")
}

func TestLoadConfigMissingFiles(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"), lookupFrom(nil))
	require.NotNil(t, err)

	path := writeConfig(t, `
config:
  query: /nonexistent/%v.missing
  measurement_iterations: 1
locations: []
`)
	_, err = LoadConfig(path, lookupFrom(nil))
	require.ErrorContains(t, err, "query file")
}
