// Package cmd wires the orbit command tree. Commands parse flags, load
// configuration and delegate to the engine packages; no scoring or
// transition logic lives here.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hadronlab/orbit/internal/activity"
	"github.com/hadronlab/orbit/internal/config"
	"github.com/hadronlab/orbit/internal/lifecycle"
	"github.com/hadronlab/orbit/internal/linker"
	"github.com/hadronlab/orbit/internal/priority"
	"github.com/hadronlab/orbit/internal/store"
	"github.com/hadronlab/orbit/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Multi-project todo and goal prioritizer",
	Long: "Orbit tracks goals and todos across local projects, scores them by " +
		"urgency and impact, and links work to git commits.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.New().Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .orbit.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database path (overrides config)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".orbit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("ORBIT")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// app bundles the collaborators every command needs. close releases the
// store and the activity log.
type app struct {
	cfg    config.Config
	store  *store.Store
	calc   *priority.Calculator
	engine *lifecycle.Engine
	linker *linker.Linker
	log    *activity.Log
	out    *ui.Printer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(cmd.Context(), cfg.DBPath)
	if err != nil {
		return nil, err
	}

	calc, err := priority.New(cfg.Weights, cfg.Tuning)
	if err != nil {
		st.Close()
		return nil, err
	}

	// The audit log is best effort; run without it if it cannot open.
	log, _ := activity.Open(filepath.Join(filepath.Dir(cfg.DBPath), "activity.jsonl"))

	return &app{
		cfg:    cfg,
		store:  st,
		calc:   calc,
		engine: lifecycle.NewEngine(st, calc, log),
		linker: linker.New(st, calc, log),
		log:    log,
		out:    ui.New(),
	}, nil
}

func (a *app) close() {
	a.log.Close()
	a.store.Close()
}

// resolveProject accepts a numeric id or a project name.
func (a *app) resolveProject(cmd *cobra.Command, arg string) (store.Project, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return a.store.ProjectByID(cmd.Context(), id)
	}
	return a.store.ProjectByName(cmd.Context(), arg)
}

// timeNow is the single clock read for a command invocation's scoring.
func timeNow() time.Time {
	return time.Now().UTC()
}

// parseDateFlag parses a --due/--target style YYYY-MM-DD value. Empty
// input yields the zero time.
func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseID parses a todo or goal id argument, with or without a leading #.
func parseID(arg string) (int64, error) {
	if len(arg) > 0 && arg[0] == '#' {
		arg = arg[1:]
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
