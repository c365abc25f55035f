package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/cache"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/jobs"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/internal/scheduler"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	baseConfig, err := cfg.SchedulerConfig()
	if err != nil {
		logger.Error("求解配置错误", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	redisCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()
	if err := rdb.Ping(redisCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", "error", err)
		return
	}
	defer ch.Close()

	if err := queue.Declare(ch, queue.EmailQueue, queue.SchedulingQueue); err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	// 求解比较耗时，每次只取一条消息
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		queue.SchedulingQueue,
		"",
		false, // 手动确认，求解完成后才确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	/**********************************************
	 * 创建任务执行器
	 **********************************************/
	var resultCache cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		resultCache = cache.NewRedis(rdb, time.Duration(cfg.Cache.TTL)*time.Second)
	case "memory":
		resultCache = cache.NewMemory(cfg.Cache.MaxEntries)
	default:
		resultCache = cache.Nop{}
	}

	runner := jobs.NewRunner(
		repo,
		jobs.NewStore(rdb, time.Duration(cfg.Redis.JobExpiration)*time.Second),
		scheduler.New(resultCache, logger),
		ch,
		baseConfig,
		time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second,
		logger,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 收到退出信号后取消正在进行的求解，任务会以“求解已取消”结束
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("消息通道已关闭")
					return
				}
				if err := runner.Handle(ctx, msg.Body); err != nil {
					logger.Error("排班任务处理失败", "error", err)
					_ = msg.Nack(false, false)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()

	logger.Info("等待排班任务...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 scheduling worker...")
	cancel()
	wg.Wait()
	logger.Info("scheduling worker 已成功关闭")
}
