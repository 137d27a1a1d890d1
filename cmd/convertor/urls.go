package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/convkit/convertor/internal/config"
	"github.com/convkit/convertor/internal/logging"
	"github.com/convkit/convertor/internal/model"
	"github.com/convkit/convertor/internal/provider"
	"github.com/convkit/convertor/internal/urlbuilder"
)

var urlsProvider string

var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "Print the generated URL family for a provider account",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logging.Log.Fatalf("加载配置失败: %v", err)
		}
		name, acc := pickProvider(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		subURL, err := resolveSubURL(ctx, acc)
		if err != nil {
			logging.Log.Fatalf("获取订阅链接失败: %v", err)
		}
		external, err := cfg.ExternalURLParsed()
		if err != nil {
			logging.Log.Fatalf("解析 external_url 失败: %v", err)
		}

		for _, client := range []model.Client{model.ClientSurge, model.ClientClash} {
			b, err := urlbuilder.New(cfg.Secret, client, name, external, subURL, cfg.Interval, cfg.Strict)
			if err != nil {
				logging.Log.Fatalf("构造 URL 失败: %v", err)
			}
			fmt.Printf("[%s]\n", client)
			fmt.Printf("raw:         %s\n", b.RawURL())
			printURL("raw-profile", b.RawProfileURL)
			printURL("profile", b.ProfileURL)
			printURL("sub-logs", b.SubLogsURL)
			if client == model.ClientSurge {
				header, err := b.SurgeHeader(urlbuilder.HeaderProfile)
				if err != nil {
					logging.Log.Fatalf("构造订阅头失败: %v", err)
				}
				fmt.Printf("header:      %s\n", header)
			}
			fmt.Println()
		}
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Rotate the provider's subscription token and print the new URL",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logging.Log.Fatalf("加载配置失败: %v", err)
		}
		_, acc := pickProvider(cfg)
		if acc.APIBaseURL == "" {
			logging.Log.Fatal("该服务商未配置面板账号，无法重置订阅")
		}
		panel, err := provider.New(acc)
		if err != nil {
			logging.Log.Fatalf("初始化面板客户端失败: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		u, err := panel.ResetSubURL(ctx)
		if err != nil {
			logging.Log.Fatalf("重置订阅失败: %v", err)
		}
		fmt.Println(u)
	},
}

func pickProvider(cfg *config.Config) (string, config.Provider) {
	if urlsProvider != "" {
		acc, ok := cfg.Provider[urlsProvider]
		if !ok {
			logging.Log.Fatalf("配置中没有服务商 %q", urlsProvider)
		}
		return urlsProvider, acc
	}
	if len(cfg.Provider) == 1 {
		for name, acc := range cfg.Provider {
			return name, acc
		}
	}
	logging.Log.Fatal("配置了多个服务商，请使用 --provider 指定一个")
	return "", config.Provider{}
}

// resolveSubURL prefers a pinned sub_url and falls back to asking the panel.
func resolveSubURL(ctx context.Context, acc config.Provider) (*url.URL, error) {
	if acc.SubURL != "" {
		return url.Parse(acc.SubURL)
	}
	panel, err := provider.New(acc)
	if err != nil {
		return nil, err
	}
	return panel.SubURL(ctx)
}

func printURL(label string, build func() (*url.URL, error)) {
	u, err := build()
	if err != nil {
		logging.Log.Fatalf("构造 URL 失败: %v", err)
	}
	fmt.Printf("%-12s %s\n", label+":", u)
}

func init() {
	urlsCmd.Flags().StringVar(&urlsProvider, "provider", "", "provider name from the config file")
	resetCmd.Flags().StringVar(&urlsProvider, "provider", "", "provider name from the config file")
	rootCmd.AddCommand(urlsCmd)
	rootCmd.AddCommand(resetCmd)
}
