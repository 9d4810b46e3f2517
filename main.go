package main

import (
	"flag"
	"fmt"
	"os"

	"kestrel-irp/core/appbootstrap"
	"kestrel-irp/core/auth"
	"kestrel-irp/core/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default config.yaml or KESTREL_CONFIG)")
	genKey := flag.Bool("genkey", false, "generate an API key and its hash for the auth config, then exit")
	flag.Parse()

	if *genKey {
		if err := printGeneratedKey(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := appbootstrap.Run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		os.Exit(1)
	}
}

func printGeneratedKey(w *os.File) error {
	key, err := utils.RandString(40)
	if err != nil {
		return err
	}
	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "api key: %s\nhash:    %s\n", key, hash)
	return nil
}
