package config

import (
	"revi/agent-core/internal/infrastructure/validator"
	"revi/agent-core/internal/pkg/agenterror"
)

// Validate checks the init record. A failure here is fatal at init time: the
// caller turns the agent into a no-op that logs once.
func (c *Config) Validate(v validator.Validator) error {
	if c.Agent.ApiKey == "" {
		return agenterror.ErrCodeMissingAPIKey
	}

	if err := v.Validate(c.Agent); err != nil {
		return agenterror.NewConfig(agenterror.CodeInvalidConfig, "invalid agent configuration", err).
			WithDetail("fields", v.ToMap(err))
	}
	if err := v.Validate(c.Resilience.Retry); err != nil {
		return agenterror.NewConfig(agenterror.CodeInvalidConfig, "invalid retry configuration", err).
			WithDetail("fields", v.ToMap(err))
	}
	if err := v.Validate(c.Resilience.Sync); err != nil {
		return agenterror.NewConfig(agenterror.CodeInvalidConfig, "invalid sync configuration", err).
			WithDetail("fields", v.ToMap(err))
	}
	if err := v.Validate(c.Storage); err != nil {
		return agenterror.NewConfig(agenterror.CodeInvalidConfig, "invalid storage configuration", err).
			WithDetail("fields", v.ToMap(err))
	}
	return nil
}
