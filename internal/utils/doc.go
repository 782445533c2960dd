// Package utils exposes reusable helpers consumed by multiple commands.
//
// ConfigurationLoader layers embedded defaults, configuration files and
// GITCAPTAIN_ environment variables through Viper. LoggerFactory builds zap
// loggers, and CommandContextAccessor carries per-invocation values such as the
// configuration path and run identifier through cobra contexts.
package utils
