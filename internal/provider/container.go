package provider

import (
	"errors"
	"time"

	"github.com/quickbite/internal/cache"
	"github.com/quickbite/internal/config"
	"github.com/quickbite/internal/events"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/payment/vnpay"
	"github.com/quickbite/internal/queue"
	"github.com/quickbite/internal/realtime"
	"github.com/quickbite/internal/repository"
	"github.com/quickbite/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Publisher   events.Publisher
	Hub         *realtime.Hub

	// Repositories
	CartRepo         repository.CartRepository
	CatalogRepo      repository.CatalogRepository
	VoucherRepo      repository.VoucherRepository
	OrderRepo        repository.OrderRepository
	PaymentRepo      repository.PaymentRepository
	InvoiceRepo      repository.InvoiceRepository
	NotificationRepo repository.NotificationRepository
	CounterRepo      repository.CounterRepository

	// Services
	StockValidator      *service.StockValidator
	PricingEngine       *service.PricingEngine
	SequenceAllocator   *service.SequenceAllocator
	NotificationService *service.NotificationService
	CartService         *service.CartService
	OrderAssembler      *service.OrderAssembler
	GroupCartService    *service.GroupCartService
	PaymentService      *service.PaymentService
	OrderService        *service.OrderService
	ChannelAccess       *service.ChannelAccess
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化事件总线
	c.initRealtime()

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CartRepo = repository.NewCartRepository(db)
	c.CatalogRepo = repository.NewCatalogRepository(db)
	c.VoucherRepo = repository.NewVoucherRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.InvoiceRepo = repository.NewInvoiceRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
	c.CounterRepo = repository.NewCounterRepository(db)
}

// initRealtime 启用 Redis 时事件经 PubSub 跨进程广播，否则直接投递到本进程 Hub
func (c *Container) initRealtime() {
	cfg := c.Config
	c.ChannelAccess = service.NewChannelAccess(c.CartRepo, c.CatalogRepo)
	if !cfg.Realtime.Enabled {
		c.Publisher = events.NopPublisher{}
		return
	}
	opts := realtime.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SendBufferSize: cfg.Realtime.SendBufferSize,
	}
	var redisPublisher *events.RedisPublisher
	if cache.Enabled() {
		redisPublisher = events.NewRedisPublisher(cache.Client(), cfg.Realtime.ChannelPrefix)
		opts.Subscriber = redisPublisher
		opts.Redis = cache.Client()
	}
	c.Hub = realtime.NewHub(c.ChannelAccess, opts)
	if redisPublisher != nil {
		c.Publisher = redisPublisher
		return
	}
	c.Publisher = c.Hub
}

func (c *Container) initServices() {
	cfg := c.Config
	c.StockValidator = service.NewStockValidator(c.CatalogRepo)
	c.PricingEngine = service.NewPricingEngine(cfg.Voucher.StackingPolicy)
	c.SequenceAllocator = service.NewSequenceAllocator(c.CounterRepo)
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.OrderRepo, c.CatalogRepo, c.Publisher, c.QueueClient)
	c.CartService = service.NewCartService(c.CartRepo, c.CatalogRepo, c.VoucherRepo, c.OrderRepo, c.StockValidator, c.PricingEngine, c.Publisher)
	c.OrderAssembler = service.NewOrderAssembler(
		c.CartService,
		c.CartRepo,
		c.OrderRepo,
		c.VoucherRepo,
		c.PaymentRepo,
		c.StockValidator,
		c.SequenceAllocator,
		c.PricingEngine,
		c.NotificationService,
		c.Publisher,
		service.OrderAssemblerOptions{
			DecrementStock: cfg.Order.DecrementStockOnOrder,
			Currency:       cfg.Order.Currency,
		},
	)
	c.GroupCartService = service.NewGroupCartService(c.CartService, c.CartRepo, c.OrderAssembler, c.Publisher)

	var gateway service.PaymentGateway
	vnpayCfg := cfg.Payment.VNPay
	client, err := vnpay.NewClient(vnpay.Config{
		TmnCode:       vnpayCfg.TmnCode,
		HashSecret:    vnpayCfg.HashSecret,
		PayURL:        vnpayCfg.PayURL,
		APIURL:        vnpayCfg.APIURL,
		ReturnURL:     vnpayCfg.ReturnURL,
		Locale:        vnpayCfg.Locale,
		ExpireMinutes: vnpayCfg.ExpireMinutes,
		Timeout:       time.Duration(vnpayCfg.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		logger.Warnw("provider_init_vnpay_failed", "error", err)
	} else {
		gateway = client
	}
	c.PaymentService = service.NewPaymentService(
		c.CartRepo,
		c.OrderRepo,
		c.PaymentRepo,
		c.InvoiceRepo,
		c.CatalogRepo,
		c.CartService,
		c.OrderAssembler,
		gateway,
		c.QueueClient,
		c.Publisher,
		service.PaymentOptions{
			SuccessRedirect: vnpayCfg.SuccessRedirect,
			FailureRedirect: vnpayCfg.FailureRedirect,
			PendingTTL:      time.Duration(vnpayCfg.ExpireMinutes) * time.Minute,
		},
	)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.InvoiceRepo, c.CatalogRepo, c.SequenceAllocator, c.NotificationService, c.Publisher)
}

// Close 释放队列与缓存连接
func (c *Container) Close() error {
	var errs []error
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
