package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/example/bundleshop/internal/auth"
	"github.com/example/bundleshop/internal/config"
)

// 签发后台接口使用的 JWT
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	actor := flag.String("actor", "", "operator name recorded in status history")
	flag.Parse()

	if *actor == "" {
		log.Fatal("-actor is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	token, err := auth.GenerateToken(&cfg.JWT, *actor, auth.RoleAdmin)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
