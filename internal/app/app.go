package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/hoyoembed/internal/config"
	"github.com/hitoshi/hoyoembed/internal/embed"
	"github.com/hitoshi/hoyoembed/internal/handler"
	"github.com/hitoshi/hoyoembed/internal/hoyolab"
	"github.com/hitoshi/hoyoembed/internal/logger"
	"github.com/hitoshi/hoyoembed/internal/metrics"
	"github.com/hitoshi/hoyoembed/internal/resolve"
	"github.com/hitoshi/hoyoembed/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// upstreamCallsPerRequest は1リクエストで発生しうる上流呼び出しの最大数。
// 短縮リンク解決、プレポストID変換、投稿取得の直列呼び出しに余裕を持たせた値。
const upstreamCallsPerRequest = 4

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("short_link_base_url", cfg.ShortLinkBaseURL),
	)

	return runServe(cfg)
}

// newServer は全依存関係をワイヤリングし、起動前のHTTPサーバーを構築する。
// SSRF防止が有効な場合は上流のベースURLを起動時に検証する。
func newServer(cfg *config.Config, log *slog.Logger) (*http.Server, error) {
	// 1. 上流通信の安全性
	guard := security.NewUpstreamGuard()

	var httpClient *http.Client
	if cfg.UpstreamSSRFProtection {
		for _, raw := range []string{cfg.APIBaseURL, cfg.ShortLinkBaseURL, cfg.WebBaseURL} {
			if err := guard.ValidateUpstreamURL(raw); err != nil {
				return nil, fmt.Errorf("invalid upstream base URL: %w", err)
			}
		}
		httpClient = guard.NewUpstreamClient(cfg.UpstreamTimeout)
	} else {
		log.Warn("upstream SSRF protection is disabled")
		httpClient = &http.Client{Timeout: cfg.UpstreamTimeout}
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービス
	client := hoyolab.NewClient(httpClient, log, collector, hoyolab.Config{
		APIBaseURL:      cfg.APIBaseURL,
		AppVersion:      cfg.AppVersion,
		DefaultLanguage: cfg.DefaultLanguage,
		Timeout:         cfg.UpstreamTimeout,
		MaxResponseSize: cfg.UpstreamMaxResponseSize,
	})
	resolver := resolve.NewService(client, log, collector, resolve.Options{
		ShortLinkBaseURL: cfg.ShortLinkBaseURL,
		PostURL:          cfg.PostURL,
	})
	renderer := embed.NewRenderer(security.NewTagStripper(), log)

	// 4. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Metrics:           collector,
		Resolver:          resolver,
		Renderer:          renderer,
		RedirectValidator: guard,
		EmbedConfig: handler.EmbedHandlerConfig{
			DefaultLanguage: cfg.DefaultLanguage,
		},
		MetricsHandler: metrics.Handler(reg),
	})

	// 上流呼び出しは直列に最大数回発生するため、書き込みタイムアウトはその合計より長くする
	writeTimeout := time.Duration(upstreamCallsPerRequest)*cfg.UpstreamTimeout + 5*time.Second

	return &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// runServe はHTTPサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	server, err := newServer(cfg, slog.Default())
	if err != nil {
		return err
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
