package main

import (
	"context"
	"errors"
	goos "os"

	"github.com/chaldeaprjkt/gamespace/pkg/config"
	"github.com/chaldeaprjkt/gamespace/pkg/daemon"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/os"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	config.PreParse(goos.Args[1:])
	conf, err := config.NewConfig()
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config load fail")
	}
	conf.WithFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Debug, "g", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	lock, err := os.NewFileLock(conf.Host.LockPath)
	if err != nil {
		log.Fatal().Err(err).Msg("lock fail")
	}
	if err = lock.TryLock(); err != nil {
		if errors.Is(err, os.ErrLocked) {
			log.Fatal().Msgf("another gamespace is running [%v]", lock.Path())
		}
		log.Fatal().Err(err).Msg("lock fail")
	}
	defer func() { _ = lock.Unlock() }()

	d, err := daemon.New(conf, log)
	if err != nil {
		log.Error().Err(err).Msg("init fail")
		return
	}
	log.Info().Msgf("control API at %v", d.Control)
	d.Run()

	<-os.ExpectTermination()
	ctx, cancel := context.WithTimeout(context.Background(), conf.Host.ShutdownTimeout)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
