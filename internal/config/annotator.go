package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for the annotator config when
// --config is not given.
const DefaultConfigPath = "config/label.yaml"

// Backend names accepted by the backend field.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

var validate = validator.New()

// Config is the root of the annotator configuration file. Only the data
// section is interpreted; display and key-binding sections belong to the
// front-end and are ignored here.
type Config struct {
	Data DataConfig `yaml:"data"`
}

// DataConfig locates the stereo sequence and the keypoint output.
// Fields omitted from the file fall back to the Get* defaults.
type DataConfig struct {
	Dir           *string `yaml:"dir" validate:"required,min=1"`
	SubdirStereoL *string `yaml:"subdir_stereo_l,omitempty" validate:"omitempty,min=1"`
	SubdirStereoR *string `yaml:"subdir_stereo_r,omitempty" validate:"omitempty,min=1"`
	SubdirOutputL *string `yaml:"subdir_output_l,omitempty" validate:"omitempty,min=1"`
	SubdirOutputR *string `yaml:"subdir_output_r,omitempty" validate:"omitempty,min=1"`
	IsRectified   *bool   `yaml:"is_rectified,omitempty"`
	ImFormat      *string `yaml:"im_format,omitempty" validate:"omitempty,startswith=."`

	// Storage
	Backend   *string `yaml:"backend,omitempty" validate:"omitempty,oneof=yaml sqlite"`
	DBPath    *string `yaml:"db_path,omitempty" validate:"omitempty,min=1"`
	RecordExt *string `yaml:"record_ext,omitempty" validate:"omitempty,startswith=."`
}

// Load reads a Config from a YAML file.
// The file must have a .yaml or .yml extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	d := c.Data
	if d.GetSubdirOutputL() == d.GetSubdirOutputR() {
		return fmt.Errorf("subdir_output_l and subdir_output_r must differ, both are %q", d.GetSubdirOutputL())
	}
	return nil
}

// GetDir returns the dataset root directory.
func (d DataConfig) GetDir() string {
	if d.Dir == nil {
		return "."
	}
	return *d.Dir
}

// GetSubdirStereoL returns the subdir_stereo_l value or the default.
func (d DataConfig) GetSubdirStereoL() string {
	if d.SubdirStereoL == nil {
		return "left"
	}
	return *d.SubdirStereoL
}

// GetSubdirStereoR returns the subdir_stereo_r value or the default.
func (d DataConfig) GetSubdirStereoR() string {
	if d.SubdirStereoR == nil {
		return "right"
	}
	return *d.SubdirStereoR
}

// GetSubdirOutputL returns the subdir_output_l value or the default.
func (d DataConfig) GetSubdirOutputL() string {
	if d.SubdirOutputL == nil {
		return "kpts_left"
	}
	return *d.SubdirOutputL
}

// GetSubdirOutputR returns the subdir_output_r value or the default.
func (d DataConfig) GetSubdirOutputR() string {
	if d.SubdirOutputR == nil {
		return "kpts_right"
	}
	return *d.SubdirOutputR
}

// GetIsRectified returns the is_rectified value or the default.
func (d DataConfig) GetIsRectified() bool {
	if d.IsRectified == nil {
		return false
	}
	return *d.IsRectified
}

// GetImFormat returns the image extension, including the dot.
func (d DataConfig) GetImFormat() string {
	if d.ImFormat == nil {
		return ".png"
	}
	return *d.ImFormat
}

// GetBackend returns the keypoint storage backend name.
func (d DataConfig) GetBackend() string {
	if d.Backend == nil {
		return BackendYAML
	}
	return *d.Backend
}

// GetDBPath returns the SQLite path, relative paths resolved against dir.
func (d DataConfig) GetDBPath() string {
	p := "keypoints.db"
	if d.DBPath != nil {
		p = *d.DBPath
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.GetDir(), p)
}

// GetRecordExt returns the extension of per-frame record files.
func (d DataConfig) GetRecordExt() string {
	if d.RecordExt == nil {
		return ".yaml"
	}
	return *d.RecordExt
}

// LeftImageDir is the directory holding left-view frames.
func (d DataConfig) LeftImageDir() string {
	return filepath.Join(d.GetDir(), d.GetSubdirStereoL())
}

// RightImageDir is the directory holding right-view frames.
func (d DataConfig) RightImageDir() string {
	return filepath.Join(d.GetDir(), d.GetSubdirStereoR())
}

// LeftOutputDir is the directory holding left-view record files.
func (d DataConfig) LeftOutputDir() string {
	return filepath.Join(d.GetDir(), d.GetSubdirOutputL())
}

// RightOutputDir is the directory holding right-view record files.
func (d DataConfig) RightOutputDir() string {
	return filepath.Join(d.GetDir(), d.GetSubdirOutputR())
}
