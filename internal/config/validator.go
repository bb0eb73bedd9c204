package config

import (
	"fmt"
	"strings"

	"github.com/complywatch/complywatch/internal/models"
	"github.com/go-playground/validator/v10"
)

// NewValidator builds the validator used for config and target validation,
// with the engine's custom rules registered.
func NewValidator() *validator.Validate {
	validate := validator.New()

	// Register custom validation for scan cadence
	_ = validate.RegisterValidation("cadence", func(fl validator.FieldLevel) bool {
		return models.Cadence(fl.Field().String()).IsValid()
	})

	// Register custom validation for LogLevel
	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		level := strings.ToLower(fl.Field().String())
		switch level {
		case "", "debug", "info", "warn", "error", "fatal", "panic": // Allow empty for omitempty
			return true
		default:
			return false
		}
	})

	// Register custom validation for LogFormat
	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		format := strings.ToLower(fl.Field().String())
		switch format {
		case "", "console", "json": // Allow empty for omitempty
			return true
		default:
			return false
		}
	})

	return validate
}

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("global config is nil")
	}

	validate := NewValidator()
	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var messages []string
			for _, fieldErr := range validationErrors {
				messages = append(messages, fmt.Sprintf("field '%s' failed on '%s'", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.StorageConfig.Backend == "sqlite" && cfg.StorageConfig.SQLiteDBPath == "" {
		return fmt.Errorf("config validation failed: sqlite backend requires sqlite_db_path")
	}

	return nil
}
