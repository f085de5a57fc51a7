package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	openrouterx "github.com/tanpawarit/odoo-assistant/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4-turbo-preview"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	CRMModel              string  `envconfig:"CRM_MODEL" split_words:"true"`
	AccountingModel       string  `envconfig:"ACCOUNTING_MODEL" split_words:"true"`
	CRMTemperature        float32 `envconfig:"CRM_TEMPERATURE" split_words:"true" default:"-1"`
	AccountingTemperature float32 `envconfig:"ACCOUNTING_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings of one domain agent. Domains
// without an override use the default model and temperature.
func (c Config) OpenRouterFor(domain contractx.Domain) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch domain {
	case contractx.DomainCRM:
		if v := strings.TrimSpace(c.CRMModel); v != "" {
			modelName = v
		}
		if c.CRMTemperature >= 0 {
			temp = c.CRMTemperature
		}
	case contractx.DomainAccounting:
		if v := strings.TrimSpace(c.AccountingModel); v != "" {
			modelName = v
		}
		if c.AccountingTemperature >= 0 {
			temp = c.AccountingTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
