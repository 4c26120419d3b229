package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	HTTP struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"http"`
	Workers struct {
		Size int `yaml:"size"`
	} `yaml:"workers"`
	Sources struct {
		SymbolMasterURL string `yaml:"symbol_master_url"`
		YahooSearchURL  string `yaml:"yahoo_search_url"`
		DataPortalURL   string `yaml:"data_portal_url"`
		HankyungURL     string `yaml:"hankyung_url"`
		NaverURL        string `yaml:"naver_url"`
		IssueURL        string `yaml:"issue_url"`
	} `yaml:"sources"`
	Search struct {
		MaxResults   int `yaml:"max_results"`
		RemoteQuotes int `yaml:"remote_quotes"`
	} `yaml:"search"`
	Reports struct {
		MaxPages int `yaml:"max_pages"`
		PageSize int `yaml:"page_size"`
	} `yaml:"reports"`
	LLM struct {
		Providers   []string `yaml:"providers"`
		GeminiModel string   `yaml:"gemini_model"`
		OpenAIModel string   `yaml:"openai_model"`
		MaxTokens   int      `yaml:"max_tokens"`
		Temperature float32  `yaml:"temperature"`
	} `yaml:"llm"`
}

func (c *Config) Validate() error {
	if c.HTTP.TimeoutSeconds < 1 || c.HTTP.TimeoutSeconds > 60 {
		return fmt.Errorf("http.timeout_seconds must be between 1-60, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.Workers.Size < 1 {
		return fmt.Errorf("workers.size must be positive, got %d", c.Workers.Size)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Reports.MaxPages < 1 {
		return fmt.Errorf("reports.max_pages must be positive, got %d", c.Reports.MaxPages)
	}
	for _, p := range c.LLM.Providers {
		if p != "GEMINI" && p != "OPENAI" {
			return fmt.Errorf("llm.providers entry must be 'GEMINI' or 'OPENAI', got '%s'", p)
		}
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8001"
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 10
	}
	if c.Workers.Size == 0 {
		c.Workers.Size = 8
	}
	if c.Sources.SymbolMasterURL == "" {
		c.Sources.SymbolMasterURL = "http://kind.krx.co.kr/corpgeneral/corpList.do?method=download&searchType=13"
	}
	if c.Sources.YahooSearchURL == "" {
		c.Sources.YahooSearchURL = "https://query2.finance.yahoo.com/v1/finance/search"
	}
	if c.Sources.DataPortalURL == "" {
		c.Sources.DataPortalURL = "https://apis.data.go.kr/1160100/service/GetStockSecuritiesInfoService/getStockPriceInfo"
	}
	if c.Sources.HankyungURL == "" {
		c.Sources.HankyungURL = "https://consensus.hankyung.com/analysis/list"
	}
	if c.Sources.NaverURL == "" {
		c.Sources.NaverURL = "https://finance.naver.com/research/company_list.naver"
	}
	if c.Sources.IssueURL == "" {
		c.Sources.IssueURL = "https://www.thinkpool.com/analysis/issue"
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 15
	}
	if c.Search.RemoteQuotes == 0 {
		c.Search.RemoteQuotes = 6
	}
	if c.Reports.MaxPages == 0 {
		c.Reports.MaxPages = 20
	}
	if c.Reports.PageSize == 0 {
		c.Reports.PageSize = 80
	}
	if len(c.LLM.Providers) == 0 {
		c.LLM.Providers = []string{"GEMINI", "OPENAI"}
	}
	if c.LLM.GeminiModel == "" {
		c.LLM.GeminiModel = "gemini-2.0-flash"
	}
	if c.LLM.OpenAIModel == "" {
		c.LLM.OpenAIModel = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
}

// Default returns a configuration with all defaults applied, no file required.
func Default() *Config {
	var c Config
	applyDefaults(&c)
	return &c
}

func LoadConfig(path string) (*Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// Missing config file falls back to defaults; env still supplies keys.
	} else if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
