package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"tilepipe/style"
)

// flag
var (
	hf bool
	cf string
)

func init() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.Usage = usage
	//InitLog 初始化日志
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(log.DebugLevel)
}

func usage() {
	fmt.Fprintf(os.Stderr, `tilepipe version: tilepipe/v0.1.0
Usage: tilepipe [-h] [-c filename]
`)
	flag.PrintDefaults()
}

// initConf 初始化配置
func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "Tilepipe Baker")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("pool.units", 0)
	viper.SetDefault("pool.queue", 64)
	viper.SetDefault("pipeline.buffer", 80)
	viper.SetDefault("pipeline.maxcodesize", 64)
	viper.SetDefault("pipeline.strategy", "table")
	viper.SetDefault("task.name", "tiles")
	viper.SetDefault("task.source", "base")
	viper.SetDefault("task.min", 0)
	viper.SetDefault("task.max", 14)
	viper.SetDefault("task.division", 1)
	viper.SetDefault("task.ancestors", 3)
	viper.SetDefault("task.savepipe", 16)
	viper.SetDefault("input.mbtiles", "input.mbtiles")
	viper.SetDefault("input.geojson", "")
	viper.SetDefault("output.directory", "output")
	viper.SetDefault("output.file", "")
}

func main() {
	flag.Parse()
	if hf {
		flag.Usage()
		return
	}

	if cf == "" {
		cf = "conf.toml"
	}
	initConf(cf)
	if lvl, err := log.ParseLevel(viper.GetString("log.level")); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("unknown log level %q, keep debug", viper.GetString("log.level"))
	}

	var defs []style.Definition
	if err := viper.UnmarshalKey("layers", &defs); err != nil {
		log.Fatalf("layers配置错误 ~ %s", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	start := time.Now()
	task, err := NewTask(cfg, defs)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := task.Run(ctx); err != nil {
		log.Fatalf("task %s failed ~ %s", task.ID, err)
	}
	secs := time.Since(start).Seconds()
	log.Printf("\n%.3fs finished...", secs)
}
