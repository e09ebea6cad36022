package config

import (
	"os"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"gopkg.in/yaml.v3"

	"github.com/anyproto/gcm-dispatcher/db"
	"github.com/anyproto/gcm-dispatcher/dispatcher"
	"github.com/anyproto/gcm-dispatcher/metric"
	"github.com/anyproto/gcm-dispatcher/queue"
	"github.com/anyproto/gcm-dispatcher/redisprovider"
)

const CName = "config"

func NewFromFile(path string) (c *Config, err error) {
	c = &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return
}

type Config struct {
	Log        logger.Config        `yaml:"log"`
	Mongo      db.Mongo             `yaml:"mongo"`
	Redis      redisprovider.Config `yaml:"redis"`
	GCM        dispatcher.Config    `yaml:"gcm"`
	RetryQueue queue.Config         `yaml:"retryQueue"`
	Metric     metric.Config        `yaml:"metric"`
	// MemoryQueue keeps retries in process instead of redis. Pending retries are lost on restart.
	MemoryQueue bool `yaml:"memoryQueue"`
}

func (c *Config) Init(a *app.App) (err error) {
	return nil
}

func (c *Config) Name() (name string) {
	return CName
}

func (c *Config) GetMongo() db.Mongo {
	return c.Mongo
}

func (c *Config) GetRedis() redisprovider.Config {
	return c.Redis
}

func (c *Config) GetGCM() dispatcher.Config {
	return c.GCM
}

func (c *Config) GetRetryQueue() queue.Config {
	return c.RetryQueue
}

func (c *Config) GetMetric() metric.Config {
	return c.Metric
}
