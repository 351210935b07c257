// Package app constructs the gateway's external dependencies from configuration. Commands call
// Open once and pass the resulting clients into the services.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dcv-session-gateway/internal/backend/directory"
	"dcv-session-gateway/internal/config"
	"dcv-session-gateway/internal/credential"
	"dcv-session-gateway/internal/db"
	"dcv-session-gateway/internal/keyservice"
	"dcv-session-gateway/internal/policy/engine"
	"dcv-session-gateway/internal/security"
	"dcv-session-gateway/internal/session/repository"
	"dcv-session-gateway/internal/session/service"
)

// Store is a session repository that can report its own health.
type Store interface {
	repository.Repository
	PingContext(ctx context.Context) error
}

// Deps are the constructed clients shared by the issue, authenticate and resolve services.
type Deps struct {
	Store       Store
	Directory   directory.Directory
	Codec       *credential.Codec
	Eligibility *engine.OPAEvaluator

	closers []func() error
}

// Close releases the store connections.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// Open builds every dependency selected by cfg. On error, anything already opened is closed.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Deps, err error) {
	d := &Deps{}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return aws.Config{}, fmt.Errorf("aws config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	if d.Store, err = d.openStore(cfg); err != nil {
		return nil, err
	}
	logger.Info("session store ready", zap.String("store", cfg.SessionStore))

	keys, err := openKeyService(cfg, loadAWS)
	if err != nil {
		return nil, err
	}
	d.Codec = credential.NewCodec(keys)
	logger.Info("key service ready", zap.String("key_service", cfg.KeyService))

	if d.Directory, err = openDirectory(cfg, loadAWS); err != nil {
		return nil, err
	}
	logger.Info("backend directory ready", zap.String("directory", cfg.BackendDirectory))

	if d.Eligibility, err = NewEligibility(ctx, cfg); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Deps) openStore(cfg *config.Config) (Store, error) {
	switch cfg.SessionStore {
	case config.StorePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.closers = append(d.closers, conn.Close)
		return repository.NewPostgresRepository(conn), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		d.closers = append(d.closers, client.Close)
		return repository.NewRedisRepository(client, cfg.Retention()), nil
	case config.StoreMemory:
		return repository.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

func openKeyService(cfg *config.Config, loadAWS func() (aws.Config, error)) (keyservice.KeyService, error) {
	switch cfg.KeyService {
	case config.KeyServiceKMS:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return keyservice.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID), nil
	case config.KeyServiceLocal:
		key, err := security.ParseMasterKey(cfg.LocalMasterKey)
		if err != nil {
			return nil, fmt.Errorf("LOCAL_MASTER_KEY: %w", err)
		}
		envelope, err := keyservice.NewLocalEnvelope(key)
		if err != nil {
			return nil, fmt.Errorf("LOCAL_MASTER_KEY: %w", err)
		}
		return envelope, nil
	default:
		return nil, fmt.Errorf("unknown key service %q", cfg.KeyService)
	}
}

func openDirectory(cfg *config.Config, loadAWS func() (aws.Config, error)) (directory.Directory, error) {
	switch cfg.BackendDirectory {
	case config.DirectoryEC2:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return directory.NewEC2Directory(ec2.NewFromConfig(awsCfg)), nil
	case config.DirectoryStatic:
		static, err := directory.LoadStaticDirectory(cfg.BackendDirectoryFile)
		if err != nil {
			return nil, err
		}
		return static, nil
	default:
		return nil, fmt.Errorf("unknown backend directory %q", cfg.BackendDirectory)
	}
}

// NewEligibility compiles the eligibility policy: ELIGIBILITY_POLICY_FILE when set, the built-in policy otherwise.
func NewEligibility(ctx context.Context, cfg *config.Config) (*engine.OPAEvaluator, error) {
	var policy string
	if cfg.EligibilityPolicyFile != "" {
		b, err := os.ReadFile(cfg.EligibilityPolicyFile)
		if err != nil {
			return nil, fmt.Errorf("eligibility policy: %w", err)
		}
		policy = string(b)
	}
	return engine.NewOPAEvaluator(ctx, engine.Rules{
		TypeTag:   cfg.TargetTypeTag,
		TypeValue: cfg.TargetTypeValue,
		UserTag:   cfg.TargetUserTag,
	}, policy)
}

// ResolverConfig returns the fixed resolution fields from cfg.
func ResolverConfig(cfg *config.Config) service.ResolverConfig {
	return service.ResolverConfig{
		SessionName: cfg.DCVSessionName,
		Port:        cfg.GatewayTargetPort,
		WebURLPath:  cfg.DCVWebURLPath,
	}
}
