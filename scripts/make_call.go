package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/wicara-ai/wicara/pkg/configutil"
	twiliotransport "github.com/wicara-ai/wicara/pkg/transports/twilio"
)

type transportConfig struct {
	Transports struct {
		Provider string         `mapstructure:"provider"`
		Settings map[string]any `mapstructure:"settings"`
	} `mapstructure:"transports"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "")
	from := flag.String("from", "", "")
	to := flag.String("to", "", "")
	voiceURL := flag.String("voice_url", "", "")
	flag.Parse()
	if *from == "" || *to == "" {
		fmt.Println("usage: make_call -from=+123 -to=+456 [-config=...]")
		os.Exit(1)
	}

	v := viper.New()
	v.SetConfigFile(*configPath)
	if err := v.ReadInConfig(); err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	var cfg transportConfig
	if err := v.Unmarshal(&cfg); err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}

	var settings twiliotransport.Config
	if err := configutil.DecodeSettings(cfg.Transports.Settings, &settings); err != nil {
		fmt.Println("settings error:", err)
		os.Exit(1)
	}

	dialer := twiliotransport.NewDialer(settings)
	callSID, err := dialer.Dial(context.Background(), *to, *from, *voiceURL)
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", callSID)
}
