package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/phoenix-bikes/biketrack/internal/app"
	"github.com/phoenix-bikes/biketrack/internal/platform/db"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/roles"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// ctlConfig is the subset of the server environment the CLI needs. Session
// and CSRF secrets are not required here.
type ctlConfig struct {
	AppHost              string `envconfig:"APP_HOST" default:"localhost"`
	StoreURL             string `envconfig:"STORE_URL"`
	StoreAnonKey         string `envconfig:"STORE_ANON_KEY"`
	StorePassword        string `envconfig:"STORE_PASSWORD"`
	StoreConfigEndpoint  string `envconfig:"STORE_CONFIG_ENDPOINT"`
	StoreCredentialsFile string `envconfig:"STORE_CREDENTIALS_FILE" default:"config/credentials.yml"`
	RedisAddr            string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
}

func (c ctlConfig) app() *app.Config {
	return &app.Config{
		AppHost:              c.AppHost,
		StoreURL:             c.StoreURL,
		StoreAnonKey:         c.StoreAnonKey,
		StorePassword:        c.StorePassword,
		StoreConfigEndpoint:  c.StoreConfigEndpoint,
		StoreCredentialsFile: c.StoreCredentialsFile,
		RedisAddr:            c.RedisAddr,
	}
}

// migrator is implemented by *db.Migrator.
type migrator interface {
	Up() (bool, error)
	Down(steps int) error
	Status() (db.MigrationStatus, error)
	Close() error
}

// roleAdmin is implemented by *roles.Service.
type roleAdmin interface {
	AssignRoleByEmail(ctx context.Context, acting rbac.Principal, email string, role rbac.RoleTag) (uuid.UUID, error)
	ListAssignments(ctx context.Context, acting rbac.Principal) ([]roles.Assignment, error)
}

// queueOps is the queue surface used by the jobs commands.
type queueOps interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// toolkit opens the resources each command needs. Tests replace the openers.
type toolkit struct {
	openMigrator func(ctx context.Context) (migrator, error)
	openRoles    func(ctx context.Context) (roleAdmin, func(), error)
	openQueues   func() (queueOps, error)
}

// operator is the principal the CLI acts as.
var operator = rbac.NewPrincipal(uuid.Nil, "biketrackctl", rbac.RoleAdmin)

func defaultToolkit() toolkit {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	load := func() (ctlConfig, error) {
		var cfg ctlConfig
		err := envconfig.Process("", &cfg)
		return cfg, err
	}
	dsn := func(ctx context.Context) (string, error) {
		cfg, err := load()
		if err != nil {
			return "", err
		}
		store, _, err := cfg.app().StoreResolver(logger).Resolve(ctx)
		if err != nil {
			return "", err
		}
		return store.DSN()
	}
	return toolkit{
		openMigrator: func(ctx context.Context) (migrator, error) {
			url, err := dsn(ctx)
			if err != nil {
				return nil, err
			}
			return db.NewMigrator(url)
		},
		openRoles: func(ctx context.Context) (roleAdmin, func(), error) {
			url, err := dsn(ctx)
			if err != nil {
				return nil, nil, err
			}
			pool, err := db.New(ctx, url)
			if err != nil {
				return nil, nil, err
			}
			svc := roles.NewService(roles.NewRepository(pool), shared.NewAuditLogger(pool), logger)
			return svc, pool.Close, nil
		},
		openQueues: func() (queueOps, error) {
			cfg, err := load()
			if err != nil {
				return nil, err
			}
			return newQueueCLI(cfg.app().AsynqRedisOpt()), nil
		},
	}
}

// queueCLI pairs an asynq client and inspector.
type queueCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func newQueueCLI(opt asynq.RedisClientOpt) *queueCLI {
	return &queueCLI{client: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}
}

func (q *queueCLI) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return q.inspector.GetQueueInfo(queue)
}

func (q *queueCLI) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return q.client.EnqueueContext(ctx, task, opts...)
}

func (q *queueCLI) Close() error {
	var err error
	if closeErr := q.inspector.Close(); closeErr != nil {
		err = closeErr
	}
	if closeErr := q.client.Close(); closeErr != nil {
		err = closeErr
	}
	return err
}

func newRootCmd(tk toolkit) *cobra.Command {
	root := &cobra.Command{
		Use:           "biketrackctl",
		Short:         "Operate a BikeTrack deployment",
		Long:          `Run schema migrations, manage role assignments and inspect background jobs.`,
		SilenceUsage: true,
	}
	root.AddCommand(newDBCmd(tk), newRolesCmd(tk), newJobsCmd(tk))
	return root
}

func timeoutCtx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 30*time.Second)
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("biketrackctl: "+format, args...)
}
