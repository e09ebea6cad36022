package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/anyproto/gcm-dispatcher/config"
	"github.com/anyproto/gcm-dispatcher/db"
	"github.com/anyproto/gcm-dispatcher/dispatcher"
	"github.com/anyproto/gcm-dispatcher/metric"
	"github.com/anyproto/gcm-dispatcher/queue"
	"github.com/anyproto/gcm-dispatcher/redisprovider"
	"github.com/anyproto/gcm-dispatcher/repo/tokenrepo"
	"github.com/anyproto/gcm-dispatcher/retry"
	"github.com/anyproto/gcm-dispatcher/tokensync"
)

var log = logger.NewNamed("main")

var (
	flagConfigFile = flag.String("c", "etc/config.yml", "path to config file")
	flagVersion    = flag.Bool("v", false, "show version and exit")
)

var version = "dev"

func main() {
	flag.Parse()
	if *flagVersion {
		fmt.Println(version)
		return
	}

	conf, err := config.NewFromFile(*flagConfigFile)
	if err != nil {
		log.Fatal("can't open config file", zap.Error(err))
	}
	conf.Log.ApplyGlobal()

	a := new(app.App)
	Bootstrap(a, conf)

	ctx := context.Background()
	if err = a.Start(ctx); err != nil {
		log.Fatal("can't start app", zap.Error(err))
	}
	log.Info("app started", zap.String("version", version))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-signals
	log.Info("received exit signal, stop app...", zap.String("signal", fmt.Sprint(sig)))

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err = a.Close(ctx); err != nil {
		log.Fatal("close error", zap.Error(err))
	}
	log.Info("goodbye!")
}

// Bootstrap registers components so that the dispatcher closes first and drains its
// attempts into the queue and token store.
func Bootstrap(a *app.App, conf *config.Config) {
	a.Register(conf).
		Register(metric.New()).
		Register(db.New()).
		Register(tokenrepo.New()).
		Register(tokensync.New())
	if conf.MemoryQueue {
		a.Register(retry.NewMemoryQueue())
	} else {
		a.Register(redisprovider.New()).
			Register(queue.New())
	}
	a.Register(dispatcher.New())
}
