package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault

	defaultMaxRetry    = 3
	defaultTaskTimeout = 30 * time.Second
)

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePaymentConfirmation 推送资助确认邮件任务
func (c *Client) EnqueuePaymentConfirmation(payload PaymentConfirmationPayload, opts ...asynq.Option) error {
	task, err := NewPaymentConfirmationTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, c.defaultQueue, append([]asynq.Option{asynq.TaskID(ConfirmationTaskID(payload.LedgerID))}, opts...)...)
}

// EnqueuePayloadArchive 推送报文归档任务
func (c *Client) EnqueuePayloadArchive(payload PayloadArchivePayload, opts ...asynq.Option) error {
	task, err := NewPayloadArchiveTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, constants.QueueCritical, append([]asynq.Option{asynq.TaskID(ArchiveTaskID(payload.LedgerID))}, opts...)...)
}

// ConfirmationTaskID 每条账本记录只发送一次确认邮件
func ConfirmationTaskID(ledgerID uint) string {
	return fmt.Sprintf("pledge-confirm-%d", ledgerID)
}

// ArchiveTaskID 每条账本记录只归档一次
func ArchiveTaskID(ledgerID uint) string {
	return fmt.Sprintf("pledge-archive-%d", ledgerID)
}

func (c *Client) enqueue(task *asynq.Task, queueName string, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	options := append([]asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Timeout(defaultTaskTimeout),
	}, opts...)
	_, err := c.client.Enqueue(task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1, constants.QueueCritical: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
