package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sanjaysanjel019/serenity/config"
	"github.com/sanjaysanjel019/serenity/limits"
	"github.com/sanjaysanjel019/serenity/logger"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config_t
)

var rootCmd = &cobra.Command{
	Use:   "waitsim",
	Short: "drive the waitid/reap subsystem of the simulated kernel",
	Long: `waitsim boots a simulated process table with an init process and
drives children through stop, continue and exit while init waits for
them with waitid.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		logger.Configure(cfg.Logging)
		limits.Syslimit = cfg.Syslimit()
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./waitsim.toml or ~/.waitsim/waitsim.toml)")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	pf.Int("sysprocs", limits.MkSysLimit().Sysprocs, "system-wide thread limit")
	v.BindPFlag("logging.level", pf.Lookup("log-level"))
	v.BindPFlag("logging.format", pf.Lookup("log-format"))
	v.BindPFlag("limits.sysprocs", pf.Lookup("sysprocs"))

	rootCmd.AddCommand(scenarioCmd, raceCmd, serveCmd)
}
