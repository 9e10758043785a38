package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/patient-notify/internal/callbridge"
	"github.com/acme/patient-notify/internal/config"
	"github.com/acme/patient-notify/internal/dispatch"
	"github.com/acme/patient-notify/internal/infra/db"
	"github.com/acme/patient-notify/internal/infra/redis"
	"github.com/acme/patient-notify/internal/jobs"
	"github.com/acme/patient-notify/internal/messaging"
	"github.com/acme/patient-notify/internal/queue"
	"github.com/acme/patient-notify/internal/repository"
	pgrepo "github.com/acme/patient-notify/internal/repository/postgres"
	scyllarepo "github.com/acme/patient-notify/internal/repository/scylla"
	"github.com/acme/patient-notify/internal/scheduler"
	appointmentsvc "github.com/acme/patient-notify/internal/service/appointment"
	reminderworker "github.com/acme/patient-notify/internal/worker/reminder"
	"github.com/acme/patient-notify/pkg/logger"
)

// Container wires together shared infrastructure dependencies. Gateway
// and call provider selection happens here, once, at construction; the
// rest of the system only ever sees the interfaces.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publishers   *publishers
		providers    *providers
		queues       *queues
	}
}

type repositories struct {
	Appointments repository.AppointmentRepository
	ReminderLogs repository.ReminderLogRepository
	CallRecords  repository.CallRecordStore
}

type services struct {
	Appointment *appointmentsvc.Service
	Scheduler   *scheduler.ReminderScheduler
}

type publishers struct {
	DeadLetters *queue.DeadLetterPublisher
}

type providers struct {
	Messaging  messaging.Gateway
	CallBridge callbridge.Provider
}

type queues struct {
	DelayedJobs  *jobs.RedisQueue
	CallDispatch *dispatch.Queue
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Appointments: pgrepo.NewAppointmentRepository(c.Postgres.DB()),
			ReminderLogs: pgrepo.NewReminderLogRepository(c.Postgres.DB()),
			CallRecords:  scyllarepo.NewCallRecordStore(c.Scylla.Session()),
		}

		pubs := &publishers{
			DeadLetters: queue.NewDeadLetterPublisher(c.Kafka, c.Config.Kafka.DeadLetterTopic),
		}

		provs := &providers{
			Messaging:  buildMessagingGateway(c.Config.Messaging),
			CallBridge: buildCallProvider(c.Config.CallBridge),
		}

		delayed := jobs.NewRedisQueue(c.Redis.Inner(), c.Config.Reminder.KeyPrefix)

		reminderScheduler := scheduler.New(delayed, repos.Appointments, c.Logger)

		callQueue := dispatch.NewQueue(
			provs.CallBridge,
			repos.CallRecords,
			repos.Appointments,
			c.Config.CallQueue.Concurrency,
			c.Config.CallQueue.PollInterval,
			c.Config.CallBridge.AgentID,
			isSimulated(c.Config.CallBridge.ProviderName),
			c.Logger,
		)

		svcs := &services{
			Appointment: appointmentsvc.NewService(repos.Appointments, repos.ReminderLogs, reminderScheduler, c.Logger),
			Scheduler:   reminderScheduler,
		}

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.providers = provs
		c.components.services = svcs
		c.components.queues = &queues{
			DelayedJobs:  delayed,
			CallDispatch: callQueue,
		}
	})
}

func buildMessagingGateway(cfg config.MessagingConfig) messaging.Gateway {
	if cfg.ProviderName == "twilio" {
		return messaging.NewTwilioGateway(cfg)
	}
	return messaging.NewSimulatedGateway(0)
}

func buildCallProvider(cfg config.CallBridgeConfig) callbridge.Provider {
	if cfg.ProviderName == "elevenlabs" {
		return callbridge.NewElevenLabsProvider(cfg)
	}
	return callbridge.NewSimulatedProvider(cfg.SimulatedDelay)
}

func isSimulated(providerName string) bool {
	return providerName != "elevenlabs"
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Publishers exposes Kafka publishers.
func (c *Container) Publishers() *publishers {
	c.initComponents()
	return c.components.publishers
}

// Providers exposes external providers.
func (c *Container) Providers() *providers {
	c.initComponents()
	return c.components.providers
}

// Queues exposes the delayed job substrate and the in-process call queue.
func (c *Container) Queues() *queues {
	c.initComponents()
	return c.components.queues
}

// ReminderWorker builds the reminder delivery worker.
func (c *Container) ReminderWorker() *reminderworker.Worker {
	c.initComponents()
	return reminderworker.New(
		c.components.queues.DelayedJobs,
		c.components.repositories.Appointments,
		c.components.repositories.ReminderLogs,
		c.components.providers.Messaging,
		c.components.publishers.DeadLetters,
		c.Config.Retry,
		c.Config.Reminder,
		c.Logger,
	)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.queues != nil && c.components.queues.CallDispatch != nil {
		c.components.queues.CallDispatch.Close()
	}
	if c.components.publishers != nil && c.components.publishers.DeadLetters != nil {
		if err := c.components.publishers.DeadLetters.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dead letter publisher close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	if c.Config.Kafka.DeadLetterTopic == "" {
		return nil
	}
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.DeadLetterTopic}, 12, 1)
}
