//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TripETL.
//
// TripETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TripETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TripETL. If not, see https://www.gnu.org/licenses/.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Package config loads connection settings from a profile file in the
// repository root, in the io_config.yaml layout:
//
//	version: 0.1.1
//	default:
//	  GOOGLE_SERVICE_ACC_KEY_FILEPATH: "{{ env_var('GOOGLE_KEY') }}"
//	  GOOGLE_LOCATION: US

const (
	DefaultFile    = "io_config.yaml"
	DefaultProfile = "default"

	// RepoPathEnv overrides the working directory as the repository root.
	RepoPathEnv = "TRIPETL_REPO_PATH"
)

// Profile keys.
const (
	KeyWarehouse          = "WAREHOUSE"
	KeyDataset            = "DATASET"
	KeyGoogleKeyFile      = "GOOGLE_SERVICE_ACC_KEY_FILEPATH"
	KeyGoogleProjectID    = "GOOGLE_PROJECT_ID"
	KeyGoogleLocation     = "GOOGLE_LOCATION"
	KeyPostgresHost       = "POSTGRES_HOST"
	KeyPostgresPort       = "POSTGRES_PORT"
	KeyPostgresDBName     = "POSTGRES_DBNAME"
	KeyPostgresUser       = "POSTGRES_USER"
	KeyPostgresPassword   = "POSTGRES_PASSWORD"
	KeyPostgresSSLMode    = "POSTGRES_SSLMODE"
	KeyAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	KeyAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	KeyAWSSessionToken    = "AWS_SESSION_TOKEN"
	KeyAWSRegion          = "AWS_REGION"
	KeyAWSEndpoint        = "AWS_ENDPOINT"
	KeyAWSForcePathStyle  = "AWS_S3_FORCE_PATH_STYLE"
	KeyS3Bucket           = "S3_BUCKET"
	KeyS3Prefix           = "S3_PREFIX"
	KeyMongoURI           = "MONGODB_CONNECTION_STRING"
	KeyMongoDatabase      = "MONGODB_DATABASE"
	KeyMongoCollection    = "MONGODB_COLLECTION"
	KeyOutputDir          = "OUTPUT_DIR"
	KeyOutputFormat       = "OUTPUT_FORMAT"
)

// ErrProfileNotFound is returned when the file has no section for the requested profile.
var ErrProfileNotFound = errors.New("profile not found")

var envVarPattern = regexp.MustCompile(`\{\{\s*env_var\(\s*['"]([^'"]+)['"]\s*\)\s*\}\}`)

// Options selects which file and profile Load reads.
type Options struct {
	RepoPath string // empty resolves through ResolveRepoPath
	File     string // relative to RepoPath unless absolute; defaults to DefaultFile
	Profile  string // defaults to DefaultProfile
	// Optional is set when a missing file should yield an empty profile.
	Optional bool
}

// Config is one resolved profile.
type Config struct {
	RepoPath string
	Path     string
	Profile  string
	values   map[string]string
}

// ResolveRepoPath picks the repository root: the explicit value, then
// TRIPETL_REPO_PATH, then the working directory.
func ResolveRepoPath(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if env := os.Getenv(RepoPathEnv); env != "" {
		return filepath.Abs(env)
	}
	return os.Getwd()
}

// Load reads .env from the repository root (when present) into the
// environment, then parses the profile file and expands env_var references.
func Load(opts Options) (*Config, error) {
	repo, err := ResolveRepoPath(opts.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repo path: %w", err)
	}

	envFile := filepath.Join(repo, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	file := opts.File
	if file == "" {
		file = DefaultFile
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(repo, file)
	}
	profile := opts.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	cfg := &Config{RepoPath: repo, Path: file, Profile: profile, values: map[string]string{}}

	data, err := os.ReadFile(file)
	if err != nil {
		if opts.Optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	values, err := Parse(data, profile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	cfg.values = values
	return cfg, nil
}

// Parse decodes the YAML document and returns the named profile with
// scalars rendered as strings and env_var references expanded.
func Parse(data []byte, profile string) (map[string]string, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	node, ok := doc[profile]
	if !ok || node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profile)
	}

	var raw map[string]interface{}
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", profile, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			values[key] = ""
		case string:
			values[key] = Interpolate(v)
		case map[string]interface{}, []interface{}:
			// nested blocks such as an inline service account key are not used
			continue
		default:
			values[key] = fmt.Sprint(v)
		}
	}
	return values, nil
}

// Interpolate replaces {{ env_var('NAME') }} with the variable's value.
func Interpolate(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// Get returns the value for key, or "" when unset.
func (c *Config) Get(key string) string {
	return c.values[key]
}

// GetDefault returns the value for key, or def when unset or empty.
func (c *Config) GetDefault(key, def string) string {
	if v := strings.TrimSpace(c.values[key]); v != "" {
		return v
	}
	return def
}

// Bool parses the value for key; unset or unparseable is false.
func (c *Config) Bool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(c.values[key]))
	return err == nil && b
}

// Set overrides a value, as command-line flags do.
func (c *Config) Set(key, value string) {
	c.values[key] = value
}

// Keys lists the keys present in the profile, sorted.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolvePath resolves p against the repository root unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoPath, p)
}
