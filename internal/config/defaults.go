package config

const (
	defaultConfigPath     = "~/.config/familyboard/config.toml"
	defaultDataDir        = "~/.local/share/familyboard"
	defaultAPIBind        = "127.0.0.1:7490"
	defaultIssuer         = "family-auth"
	defaultTokenTTLHours  = 24
	defaultPollInterval   = 15
	defaultServerURL      = "http://127.0.0.1:7490"
	defaultRequestTimeout = 10
	defaultMutationRate   = 5
	defaultMutationBurst  = 20
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

var defaultStages = []string{"New", "Making", "Packed", "Shipped"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	stages := make([]string, len(defaultStages))
	copy(stages, defaultStages)
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Auth: Auth{
			Issuer:        defaultIssuer,
			TokenTTLHours: defaultTokenTTLHours,
		},
		Board: Board{
			DefaultStages: stages,
			PollInterval:  defaultPollInterval,
		},
		Client: Client{
			ServerURL:      defaultServerURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Limits: Limits{
			MutationRate:  defaultMutationRate,
			MutationBurst: defaultMutationBurst,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
