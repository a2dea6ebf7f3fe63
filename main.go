package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/worldsnap/worldsnap/internal/capture"
	"github.com/worldsnap/worldsnap/internal/config"
	"github.com/worldsnap/worldsnap/internal/hotcache"
	"github.com/worldsnap/worldsnap/internal/logging"
	"github.com/worldsnap/worldsnap/internal/save"
	"github.com/worldsnap/worldsnap/internal/server"
	"github.com/worldsnap/worldsnap/internal/server/routes"
	"github.com/worldsnap/worldsnap/internal/sim"
	"github.com/worldsnap/worldsnap/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	saveOnce    int
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// 退出前最后一次保存允许的时长。
const shutdownSaveTimeout = 30 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["save_path"] = cfg.Global.SavePath
		fields["sources"] = cfg.Capture.EnabledSources()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 缓存 → 模拟世界 → 保存编排 → 管理接口，所有组件共享同一个缓存实例。
	cache := hotcache.New()
	world, err := sim.New(cache, sim.Options{
		Seed:       cfg.Simulation.Seed,
		Actors:     cfg.Simulation.Actors,
		Players:    cfg.Simulation.Players,
		Dimensions: cfg.Simulation.Dimensions,
	}, time.Now)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化模拟世界失败: %v\n", err)
		return 1
	}
	orchestrator := save.New(cfg.Global.SavePath, cache, captureOptions(cfg), logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["save_path"] = cfg.Global.SavePath
	fields["sources"] = cfg.Capture.EnabledSources()
	fields["listen_addr"] = cfg.Global.ListenAddr
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if opts.saveOnce > 0 {
		return runSaveOnce(world, orchestrator, opts.saveOnce)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, world, orchestrator, cache, logger); err != nil {
		fmt.Fprintf(stdErr, "服务运行失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("worldsnap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		saveOnce   int
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 WORLDSNAP_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.IntVar(&saveOnce, "save-once", 0, "推进 N 步模拟后执行一次保存并退出")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if saveOnce < 0 {
		return cliOptions{}, fmt.Errorf("save-once 不能为负数: %d", saveOnce)
	}

	path := os.Getenv("WORLDSNAP_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		saveOnce:    saveOnce,
	}, nil
}

// captureOptions 把配置中的采集开关拷贝为编码时使用的只读快照。
func captureOptions(cfg *config.Config) capture.Options {
	behavior := cfg.Entity.Behavior
	return capture.Options{
		DataVersion:             int32(cfg.Global.DataVersion),
		Players:                 cfg.Capture.Players,
		Advancements:            cfg.Capture.Advancements,
		Entities:                cfg.Capture.Entities,
		ModifyEntityBehavior:    behavior.ModifyEntityBehavior,
		NoAI:                    behavior.NoAI,
		NoGravity:               behavior.NoGravity,
		Invulnerable:            behavior.Invulnerable,
		Silent:                  behavior.Silent,
		CaptureTimestamp:        cfg.Entity.Metadata.CaptureTimestamp,
		CensorLastDeathLocation: cfg.Entity.Censor.LastDeathLocation,
	}
}

// runSaveOnce 推进固定步数后保存一次并打印报告。
func runSaveOnce(world *sim.World, orchestrator *save.Orchestrator, steps int) int {
	for i := 0; i < steps; i++ {
		if err := world.Step(); err != nil {
			fmt.Fprintf(stdErr, "模拟推进失败: %v\n", err)
			return 1
		}
	}
	report, err := orchestrator.Run(context.Background())
	if encodeErr := printReport(report); encodeErr != nil {
		fmt.Fprintf(stdErr, "输出报告失败: %v\n", encodeErr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stdErr, "保存失败: %v\n", err)
		return 1
	}
	return 0
}

func printReport(report any) error {
	enc := json.NewEncoder(stdOut)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// serve 运行模拟循环、自动保存与管理接口，ctx 结束后做最后一次保存。
func serve(ctx context.Context, cfg *config.Config, world *sim.World, orchestrator *save.Orchestrator, cache *hotcache.Cache, logger *logrus.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return world.Run(gctx, cfg.Global.TickRate.DurationValue())
	})

	if interval := cfg.Global.AutoSaveInterval.DurationValue(); interval > 0 {
		g.Go(func() error {
			autoSave(gctx, orchestrator, interval, logger)
			return nil
		})
	}

	if cfg.Global.ListenAddr != "" {
		app, err := newAdminApp(orchestrator, cache, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			logger.WithFields(logrus.Fields{
				"action": "listen",
				"addr":   cfg.Global.ListenAddr,
			}).Info("Fiber 服务启动")
			return app.Listen(cfg.Global.ListenAddr, fiber.ListenConfig{DisableStartupMessage: true})
		})
		g.Go(func() error {
			<-gctx.Done()
			return app.Shutdown()
		})
	}

	runErr := g.Wait()

	finalCtx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
	defer cancel()
	if _, err := orchestrator.Run(finalCtx); err != nil && !errors.Is(err, save.ErrPassInProgress) {
		runErr = errors.Join(runErr, err)
	}
	world.Close()
	return runErr
}

func autoSave(ctx context.Context, orchestrator *save.Orchestrator, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := orchestrator.Run(ctx); err != nil {
				logger.WithField("action", "autosave").WithError(err).Warn("自动保存失败")
			}
		}
	}
}

func newAdminApp(orchestrator *save.Orchestrator, cache *hotcache.Cache, logger *logrus.Logger) (*fiber.App, error) {
	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Saver:  orchestrator,
		Cache:  cache,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDimensionRoutes(app)
	return app, nil
}
