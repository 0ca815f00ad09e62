package main

import (
	"context"
	"log"

	coreboot "github.com/MellowIQ3/zi-hanki/core/bootstrap"
	corecmd "github.com/MellowIQ3/zi-hanki/core/cmd"
	coreconfig "github.com/MellowIQ3/zi-hanki/core/config"
	"github.com/MellowIQ3/zi-hanki/internal/bot"
	"github.com/MellowIQ3/zi-hanki/internal/store"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		Bootstrap: func(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
			res, err := coreboot.Run(coreboot.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			st, err := store.Open(cfg.Vending, res.DB)
			if err != nil {
				return nil, err
			}
			// fail fast on an unreadable or corrupt dataset
			if _, err := st.Load(context.Background()); err != nil {
				return nil, err
			}
			app, err := bot.New(cfg, st)
			if err != nil {
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatalf("zihanki: %v", err)
	}
}
