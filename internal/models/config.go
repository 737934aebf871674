package models

// ConfigSingletonKey is the fixed key of the only configuration row
const ConfigSingletonKey = "default"

// Config is the operator configuration, currently just the hardware webhook URL
type Config struct {
	ID         string  `json:"id" db:"id"`
	WebhookURL *string `json:"webhookUrl" db:"webhook_url"`
}
