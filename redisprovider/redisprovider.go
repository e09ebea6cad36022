package redisprovider

import (
	"context"
	"errors"

	"github.com/anyproto/any-sync/app"
	"github.com/redis/go-redis/v9"
)

const CName = "gcm.redisprovider"

func New() RedisProvider {
	return new(redisProvider)
}

type RedisProvider interface {
	Redis() redis.UniversalClient
	app.ComponentRunnable
}

type configSource interface {
	GetRedis() Config
}

type Config struct {
	IsCluster bool     `yaml:"isCluster"`
	Url       string   `yaml:"url"`
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
}

type redisProvider struct {
	redis redis.UniversalClient
}

func (r *redisProvider) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configSource).GetRedis()
	if conf.IsCluster {
		if len(conf.Addrs) == 0 {
			return errors.New("redis: cluster mode requires addrs")
		}
		r.redis = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    conf.Addrs,
			Password: conf.Password,
		})
		return nil
	}
	opts, err := redis.ParseURL(conf.Url)
	if err != nil {
		return err
	}
	if conf.Password != "" {
		opts.Password = conf.Password
	}
	r.redis = redis.NewClient(opts)
	return nil
}

func (r *redisProvider) Name() (name string) {
	return CName
}

func (r *redisProvider) Run(ctx context.Context) (err error) {
	return r.redis.Ping(ctx).Err()
}

func (r *redisProvider) Redis() redis.UniversalClient {
	return r.redis
}

func (r *redisProvider) Close(ctx context.Context) (err error) {
	return r.redis.Close()
}
