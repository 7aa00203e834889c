package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"crabmigrate/internal/config"
	"crabmigrate/internal/restclient"
)

type commandContext struct {
	configFlag *string
	urlFlag    *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, urlFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		urlFlag:    urlFlag,
		tokenFlag:  tokenFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiBaseURL picks the --url flag when set, otherwise derives the local
// daemon address from configuration.
func (c *commandContext) apiBaseURL() (string, error) {
	if c.urlFlag != nil {
		if url := strings.TrimSpace(*c.urlFlag); url != "" {
			return strings.TrimRight(url, "/"), nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return "http://" + cfg.Paths.APIBind, nil
}

func (c *commandContext) apiToken() (string, error) {
	if c.tokenFlag != nil {
		if token := strings.TrimSpace(*c.tokenFlag); token != "" {
			return token, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIToken, nil
}

func (c *commandContext) restClient() (*restclient.Client, error) {
	baseURL, err := c.apiBaseURL()
	if err != nil {
		return nil, err
	}
	token, err := c.apiToken()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: 5 * time.Minute}
	return restclient.New(baseURL, token, httpClient), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
