package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Webhook: WebhookConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Path: "/",
		},
		Platform: PlatformConfig{
			APIBase: "https://graph.facebook.com/v20.0",
		},
		Assistant: AssistantConfig{
			APIBase: "https://api.openai.com/v1",
		},
		Relay: RelayConfig{
			PollIntervalMs:    500,
			RunTimeoutSeconds: 120,
			ChunkSize:         1000,
		},
		History: HistoryConfig{
			Enabled:       false,
			DBPath:        "~/.instarelay/history.db",
			RetentionDays: 90,
		},
		Alerts: AlertsConfig{
			Telegram: TelegramAlertConfig{
				Enabled: false,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
