package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"hiresphere/internal/chat/app"
	"hiresphere/internal/chat/domain"
	"hiresphere/internal/chat/repository"
	"hiresphere/pkg/config"
	"hiresphere/pkg/database"
	"hiresphere/pkg/logger"
	"hiresphere/pkg/token"

	"go.uber.org/zap"
)

// Headless HireSphere chat client: syncs rooms and messages over the
// pub/sub channel and drives the engine from stdin.
func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatClient, config.EnvConfig.ChatClientLogPath)
	cfg := config.LoadConfig[config.ChatClient](config.EnvConfig.ChatClient, config.EnvConfig.ChatClientYAMLPath)

	authToken := config.EnvConfig.AuthToken
	claims, err := token.ParseJWT(authToken)
	if err != nil {
		logger.Log.Fatal("invalid CHAT_AUTH_TOKEN", zap.Error(err))
	}
	logger.Log.Info("authenticated",
		zap.Int64("user_id", claims.UserID),
		zap.String("role", claims.Role),
	)

	redisClient, err := database.NewRedisClient(cfg.Redis.Addr, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	defer redisClient.Close()

	channel := repository.NewRedisPubSub(redisClient, cfg.ProbeInterval)
	portal := repository.NewPortalClient(cfg.Portal.BaseURL, authToken, cfg.Portal.Timeout)

	engine := app.NewChatEngine(
		claims,
		func() string { return authToken },
		channel,
		portal,
		cfg.ReconnectDelay,
	)
	engine.OnConversationChange(func() {
		msgs := engine.Messages()
		if len(msgs) == 0 {
			return
		}
		// scroll to the newest message
		last := msgs[len(msgs)-1]
		who := "them"
		if last.SenderID == claims.UserID {
			who = "me"
		}
		fmt.Printf("[room %d] %s: %s\n", last.RoomID, who, last.Content)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.Start(ctx)
	defer engine.Close()

	fmt.Println("commands: /rooms  /focus <id>  /quit  (anything else is sent)")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/rooms":
			printRooms(engine, claims.UserID)
		case strings.HasPrefix(line, "/focus "):
			id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/focus ")), 10, 64)
			if err != nil {
				fmt.Println("usage: /focus <room id>")
				continue
			}
			if err := engine.FocusRoom(id); err != nil {
				fmt.Println("cannot focus:", err)
			}
		default:
			if err := engine.SendMessage(line); err != nil {
				fmt.Println("cannot send:", err)
			}
		}
	}
}

func printRooms(engine *app.ChatEngine, viewerID int64) {
	rooms := engine.Rooms()
	if len(rooms) == 0 {
		fmt.Println("no rooms yet")
		return
	}
	if engine.State() != domain.StateConnected {
		fmt.Println("(offline, reconnecting)")
	}
	for _, r := range rooms {
		marker := " "
		if r.ID == engine.FocusedRoomID() {
			marker = "*"
		}
		fmt.Printf("%s %d  %-20s unread:%d  %s\n",
			marker, r.ID, r.PartnerName(viewerID), r.UnreadCount, r.LastMessage)
	}
}
