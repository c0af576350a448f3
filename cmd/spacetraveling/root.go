package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/spacetraveling"
)

// fileConfig mirrors spacetraveling.SiteConfig with the keys accepted in
// config.yaml and as SPACETRAVELING_* environment variables.
type fileConfig struct {
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	Description string `mapstructure:"description"`
	Author      string `mapstructure:"author"`

	Addr         string `mapstructure:"addr"`
	DatabasePath string `mapstructure:"database_path"`

	APIEndpoint  string        `mapstructure:"api_endpoint"`
	AccessToken  string        `mapstructure:"access_token"`
	DocumentType string        `mapstructure:"document_type"`
	PageSize     int           `mapstructure:"page_size"`
	Revalidate   time.Duration `mapstructure:"revalidate"`

	AdminPassword string `mapstructure:"admin_password"`
	SessionSecret string `mapstructure:"session_secret"`
	CookieSecure  bool   `mapstructure:"cookie_secure"`
	WebhookSecret string `mapstructure:"webhook_secret"`

	MCPEnabled bool `mapstructure:"mcp_enabled"`
}

func (c fileConfig) site() spacetraveling.SiteConfig {
	return spacetraveling.SiteConfig{
		Name:          c.Name,
		URL:           c.URL,
		Description:   c.Description,
		Author:        c.Author,
		Addr:          c.Addr,
		DatabasePath:  c.DatabasePath,
		APIEndpoint:   c.APIEndpoint,
		AccessToken:   c.AccessToken,
		DocumentType:  c.DocumentType,
		PageSize:      c.PageSize,
		Revalidate:    c.Revalidate,
		AdminPassword: c.AdminPassword,
		SessionSecret: c.SessionSecret,
		CookieSecure:  c.CookieSecure,
		WebhookSecret: c.WebhookSecret,
		MCPEnabled:    c.MCPEnabled,
	}
}

var (
	cfgFile   string
	appConfig fileConfig
)

var rootCmd = &cobra.Command{
	Use:   "spacetraveling",
	Short: "A blog served from a headless CMS",
	Long: `spacetraveling renders a blog whose posts live in a Prismic repository.
Pages are cached and revalidated in the background; the posts can also be
served to MCP clients.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(serveCmd, mcpCmd, versionCmd)
}

func initializeConfig(cmd *cobra.Command) error {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("name", "spacetraveling")
	v.SetDefault("url", "http://localhost:3000")
	v.SetDefault("description", "")
	v.SetDefault("author", "")
	v.SetDefault("addr", ":3000")
	v.SetDefault("database_path", "data/spacetraveling.db")
	v.SetDefault("api_endpoint", "")
	v.SetDefault("access_token", "")
	v.SetDefault("document_type", "posts")
	v.SetDefault("page_size", 3)
	v.SetDefault("revalidate", time.Hour)
	v.SetDefault("admin_password", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("webhook_secret", "")
	v.SetDefault("mcp_enabled", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SPACETRAVELING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&appConfig); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return nil
}
