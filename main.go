package main

import (
	"flag"
	"log"
	"path/filepath"
	"strings"

	"spendlens/config"
	"spendlens/database"
	"spendlens/events"
	"spendlens/extraction"
	"spendlens/logger"
	"spendlens/middleware"
	"spendlens/router"
	"spendlens/service"
)

// @title Spendlens 记账 API
// @version 1.0
// @description 自由文本记账、小票、预算汇总与变更推送
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "外部配置文件路径（简写）")
	flag.StringVar(&port, "port", "", "监听端口，如: 8080 或 :8080")
	flag.StringVar(&port, "p", "", "监听端口（简写）")
	flag.BoolVar(&showVersion, "version", false, "显示版本信息")
	flag.BoolVar(&showVersion, "v", false, "显示版本信息（简写）")
}

// eventCounter 统计经过事件中心的每一条事件
type eventCounter struct{}

func (eventCounter) Send(e events.Event) error {
	middleware.EventsPublished.WithLabelValues(e.Table, e.Type).Inc()
	return nil
}

func main() {
	flag.Parse()

	if showVersion {
		log.Println("Spendlens v1.0.0")
		return
	}

	// 加载配置（内置配置 + 可选的外部配置覆盖）
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 命令行参数覆盖端口配置
	if port != "" {
		// 自动添加冒号前缀
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
		log.Printf("命令行指定端口: %s", port)
	}

	appLog := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.SetDefault(appLog)

	// 打印配置信息
	config.PrintConfig()

	// 事件中心
	hub := events.NewHub(64)
	hub.AddSink(eventCounter{})
	eventsLog := appLog.WithComponent("events")
	hub.OnDrop(func(e events.Event) {
		eventsLog.Warn("subscriber buffer full, event dropped", "table", e.Table, "type", e.Type)
	})
	hub.OnSinkError(func(e events.Event, err error) {
		eventsLog.Error("forward event failed", "table", e.Table, "type", e.Type, "error", err)
	})
	if cfg.Events.AMQPURL != "" {
		sink, err := events.NewAMQPSink(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			log.Fatalf("连接 AMQP 失败: %v", err)
		}
		defer sink.Close()
		hub.AddSink(sink)
	}
	// 先于 AMQP 连接关闭，把排队中的事件发完
	defer hub.Close()

	// 初始化数据库
	if err := database.Init(cfg); err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}
	if err := database.RegisterChangeNotifier(database.DB, hub.Publish); err != nil {
		log.Fatalf("注册变更通知失败: %v", err)
	}

	// 初始化 JWT
	middleware.InitJWT(cfg)

	objects, err := service.NewLocalStore(filepath.Clean(cfg.Storage.ReceiptsDir))
	if err != nil {
		log.Fatalf("初始化小票存储失败: %v", err)
	}

	store := database.NewStore(database.DB)
	pipeline := extraction.NewPipeline(
		service.NewChatModel(&cfg.AI),
		store,
		extraction.WithLogger(appLog.WithComponent("extraction")),
	)

	// 设置路由
	r := router.SetupRouter(cfg, router.Deps{
		Log:       appLog,
		Hub:       hub,
		Extractor: pipeline,
		History:   store,
		Objects:   objects,
	})

	// 启动服务器
	log.Printf("==========================================")
	log.Printf("  💰 Spendlens 已启动")
	log.Printf("==========================================")
	log.Printf("  Swagger:  http://localhost%s/swagger/index.html", cfg.Server.Port)
	log.Printf("  API接口:  http://localhost%s/api/v1/", cfg.Server.Port)
	log.Printf("  指标:     http://localhost%s/metrics", cfg.Server.Port)
	log.Printf("==========================================")

	if err := r.Run(cfg.Server.Port); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
}
