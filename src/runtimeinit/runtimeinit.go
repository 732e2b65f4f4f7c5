package runtimeinit

import (
	"fmt"
	"log"

	"asteroid-miner/src/bot"
	"asteroid-miner/src/config"
	"asteroid-miner/src/input"
	"asteroid-miner/src/mock"
	"asteroid-miner/src/ocr"
	"asteroid-miner/src/overview"
	"asteroid-miner/src/screenshot"
	"asteroid-miner/src/vision"
	"asteroid-miner/src/worker"
)

// reuseLimit bounds how many polls in a row may skip OCR on an unchanged capture.
const reuseLimit = 3

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// Mock runs the bot against a simulated belt instead of the screen.
	Mock bool
}

// Runtime is everything the entry point wires into the event loop.
type Runtime struct {
	Config   *config.Config
	Bot      *bot.Bot
	Failsafe *input.Failsafe
	// MockEnv is set in mock mode.
	MockEnv *mock.Env

	pool *worker.Pool
}

// Close releases the OCR engines.
func (r *Runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	rt := &Runtime{Config: cfg, Failsafe: &input.Failsafe{}}
	botOpts := BotOptions(cfg)

	if opts.Mock {
		keys := mock.Keys{
			Approach:   cfg.ApproachKey,
			Lock:       cfg.LockKey,
			Activation: cfg.ActivationKeys,
			StopCombo:  cfg.StopCombo,
		}
		rt.MockEnv = mock.NewEnv(mock.NewWorld(mock.WorldOptions{Modules: len(cfg.ActivationKeys)}, mock.DefaultBelt()...), keys)
		rt.Bot = bot.New(botOpts, rt.MockEnv, input.Guard(rt.MockEnv, rt.Failsafe))
		log.Printf("Running against the mock belt")
		return rt, nil
	}

	if ok, err := screenshot.Visible(cfg.OverviewRegion); err != nil {
		log.Printf("Warning: could not query display bounds: %v", err)
	} else if !ok {
		return nil, fmt.Errorf("OVERVIEW_REGION %s is outside the visible displays", cfg.OverviewRegion)
	}

	pool, err := worker.New(cfg.OCRWorkers, ocr.TesseractFactory(cfg.TesseractLang))
	if err != nil {
		return nil, fmt.Errorf("failed to start OCR: %w", err)
	}
	rt.pool = pool

	v := vision.New(vision.Options{
		Region:          cfg.OverviewRegion,
		Classifier:      botOpts.Classifier,
		Pool:            pool,
		HashDistance:    cfg.OCRHashDistance,
		MaxReuse:        reuseLimit,
		DebugSaveImages: cfg.OCRDebugSaveImages,
	})
	rt.Bot = bot.New(botOpts, v, input.Guard(input.NewRobotController(), rt.Failsafe))
	log.Printf("Watching overview region %s", cfg.OverviewRegion)
	return rt, nil
}

// BotOptions maps configuration onto bot options.
func BotOptions(cfg *config.Config) bot.Options {
	opts := bot.DefaultOptions()
	opts.Classifier = overview.Classifier{
		AsteroidMarkers: cfg.AsteroidMarkers,
		HostileMarkers:  cfg.HostileMarkers,
		Ores:            cfg.Ores,
	}
	opts.ApproachKey = cfg.ApproachKey
	opts.LockKey = cfg.LockKey
	opts.ActivationKeys = cfg.ActivationKeys
	opts.StopCombo = cfg.StopCombo
	opts.LockRangeMeters = cfg.LockRangeMeters
	opts.LockSettle = cfg.LockSettle
	opts.SafeSpot = cfg.SafeSpot
	opts.LostTargetPolls = cfg.LostTargetPolls
	return opts
}
